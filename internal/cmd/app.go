package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/backend"
	"github.com/felixgeelhaar/stockbook/internal/config"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
	"github.com/felixgeelhaar/stockbook/internal/guard"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
	"github.com/felixgeelhaar/stockbook/internal/session"
	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
	"github.com/felixgeelhaar/stockbook/internal/tui"
	"github.com/felixgeelhaar/stockbook/internal/ux"
	"github.com/felixgeelhaar/stockbook/internal/version"
)

// Options are the process-level inputs of the CLI. Zero values use the
// real terminal.
type Options struct {
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	Prompter tui.Prompter
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.Prompter == nil {
		o.Prompter = tui.HuhPrompter{Accessible: os.Getenv("ACCESSIBLE") != ""}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Command annotations read by the root's PersistentPreRunE.
const (
	annotationGuard   = "stockbook/guard"
	guardRequiresAuth = "requires-auth"
	guardGuestOnly    = "guest-only"

	annotationSession = "stockbook/session"
	// sessionBare skips configuration and the session entirely.
	sessionBare = "bare"
	// sessionNone loads configuration but opens no session store.
	sessionNone = "none"
	// sessionDeferred opens the store but leaves Init to the command.
	sessionDeferred = "deferred"
)

func requiresAuth(c *cobra.Command) *cobra.Command { return annotate(c, annotationGuard, guardRequiresAuth) }
func guestOnly(c *cobra.Command) *cobra.Command    { return annotate(c, annotationGuard, guardGuestOnly) }

func annotate(c *cobra.Command, key, value string) *cobra.Command {
	if c.Annotations == nil {
		c.Annotations = map[string]string{}
	}
	c.Annotations[key] = value
	return c
}

type globalFlags struct {
	configPath string
	output     string
	noColor    bool
	verbose    bool
}

// App is the composition root shared by every command. It is populated in
// PersistentPreRunE according to the command's annotations.
type App struct {
	opts  Options
	flags globalFlags

	Config   *config.Config
	Logger   *log.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    *sessionstore.Store
	Session  *session.Service
	Client   *api.Client
	API      *backend.API
	Expiry   *guard.ExpiryRedirect

	closeStore func() error
	stopWatch  func()

	mu  sync.Mutex
	nav guard.Navigator
}

func newApp(opts Options) *App {
	return &App{opts: opts.withDefaults(), Logger: log.Discard()}
}

func (a *App) bootstrap(cmd *cobra.Command) error {
	ctx := cmd.Context()
	mode := cmd.Annotations[annotationSession]
	if mode == sessionBare {
		return nil
	}

	cfg, err := config.Load(config.Options{Path: a.flags.configPath, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if a.flags.verbose {
		cfg.Log.Level = "debug"
	}
	a.Config = cfg

	lc := cfg.LoggerConfig()
	if a.flags.verbose {
		lc = log.DevelopmentConfig()
		lc.Format = log.ParseFormat(cfg.Log.Format)
	}
	lc.Output = log.NewOutput(a.opts.Err)
	a.Logger = log.New(lc)
	log.SetDefaultLogger(a.Logger)
	a.Registry, a.Metrics = metrics.NewRegistry()

	if mode == sessionNone {
		return nil
	}

	store, closeStore, err := sessionstore.Open(ctx, cfg.StoreOptions(a.Logger))
	if err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStoreBackend, "could not open session store", err).
			WithSuggestion("Check session.backend and session.dir in " + config.DefaultPath())
	}
	a.Store, a.closeStore = store, closeStore
	a.Session = session.New(store, session.WithLogger(a.Logger), session.WithMetrics(a.Metrics))

	a.Expiry = guard.NewExpiryRedirect(guard.NavigatorFunc(a.navigate), a.Logger)
	a.stopWatch = a.Expiry.ResetOnLogin(a.Session)

	client, err := api.NewClient(cfg.APIClientConfig(version.GetInfo().UserAgent()), store,
		api.WithLogger(a.Logger),
		api.WithMetrics(a.Metrics),
		// Every 401 counts, with or without a credential: another process may
		// have cleared the shared store while this one still holds a session.
		api.WithInvalidationHandler(a.Expiry),
	)
	if err != nil {
		return sberrors.NewConfigInvalidError(err.Error())
	}
	a.Client = client
	a.API = backend.New(client)

	if mode == sessionDeferred {
		return nil
	}
	a.Session.Init(ctx)
	return a.checkGuard(cmd)
}

// setNavigator replaces the terminal navigator, e.g. with the console's.
func (a *App) setNavigator(n guard.Navigator) {
	a.mu.Lock()
	a.nav = n
	a.mu.Unlock()
}

// navigate is the terminal's idea of "go to the login page": tell the user
// the session is gone. The failing command then exits with the auth code.
func (a *App) navigate(target string) {
	a.mu.Lock()
	nav := a.nav
	a.mu.Unlock()
	if nav != nil {
		nav.Navigate(target)
		return
	}
	// A rejected login has no session to end.
	if !a.Session.Snapshot().IsAuthenticated {
		return
	}
	st := ux.NewStyles(a.opts.Err, a.flags.noColor)
	fmt.Fprintln(a.opts.Err, st.Warn.Render("Signed out: the server no longer accepts this session."))
}

func (a *App) checkGuard(cmd *cobra.Command) error {
	var p guard.Policy
	switch cmd.Annotations[annotationGuard] {
	case guardRequiresAuth:
		p = guard.Authenticated
	case guardGuestOnly:
		p = guard.Unauthenticated
	default:
		return nil
	}

	st := a.Session.Snapshot()
	d := p.Evaluate(st)
	a.Metrics.RecordGuardDecision(p.String(), d.Outcome.String())
	if d.Outcome != guard.Redirect {
		return nil
	}
	if p == guard.Authenticated {
		return sberrors.NewNotLoggedInError()
	}
	return sberrors.NewAlreadyLoggedInError(st.Email())
}

func (a *App) close() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

func (a *App) formatter() (ux.Formatter, error) {
	return ux.NewFormatter(a.flags.output, &ux.FormatterOptions{Writer: a.opts.Out, NoColor: a.flags.noColor})
}

func (a *App) styles() ux.Styles {
	return ux.NewStyles(a.opts.Out, a.flags.noColor)
}

func (a *App) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
