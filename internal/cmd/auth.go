package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/backend"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
	"github.com/felixgeelhaar/stockbook/internal/session"
	"github.com/felixgeelhaar/stockbook/internal/tokeninfo"
	"github.com/felixgeelhaar/stockbook/internal/tui"
	"github.com/felixgeelhaar/stockbook/internal/ux"
)

func newAuthCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and inspect the session",
	}
	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newRegisterCmd(a),
	)
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func notInteractive(err error, hint string) error {
	if errors.Is(err, tui.ErrNotInteractive) {
		return sberrors.Wrap(sberrors.ErrCodeLoginIncomplete, "credentials required", err).WithSuggestion(hint)
	}
	return err
}

func newLoginCmd(a *App) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. Without flags the command prompts;
in scripts pass --email and pipe the password with --password-stdin.`,
		Example: `  stockbook auth login
  echo "$PASSWORD" | stockbook auth login --email ada@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)

			var creds tui.Credentials
			if passwordStdin && email != "" {
				pw, err := readPassword(a.opts.In)
				if err != nil {
					return err
				}
				creds = tui.Credentials{Email: email, Password: pw}
			} else {
				var err error
				creds, err = a.opts.Prompter.Credentials(email)
				if err != nil {
					return notInteractive(err, "Pass --email and --password-stdin when not running in a terminal")
				}
			}
			if creds.Email == "" || creds.Password == "" {
				return sberrors.New(sberrors.ErrCodeLoginIncomplete, "email and password are required")
			}

			res, err := a.API.Auth.Login(ctx, creds.Email, creds.Password)
			if err != nil {
				if api.IsAuthorization(err) {
					return sberrors.Wrap(sberrors.ErrCodeInvalidCredentials, "invalid email or password", err).
						WithSuggestion("Check the email and password and try again")
				}
				return err
			}

			if err := a.Session.Login(ctx, res.User.Email, res.Token, session.WithDetails(res.User.User())); err != nil {
				return err
			}

			st := a.styles()
			fmt.Fprintf(a.opts.Out, "%s Logged in as %s\n", st.Success.Render("✓"), st.Title.Render(res.User.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return guestOnly(cmd)
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.styles()
			if !a.Session.Snapshot().IsAuthenticated {
				fmt.Fprintln(a.opts.Out, st.Muted.Render("Not logged in."))
				return nil
			}
			if err := a.Session.Logout(a.ctx(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(a.opts.Out, "%s Logged out\n", st.Success.Render("✓"))
			return nil
		},
	}
}

// statusView is what `auth status` prints.
type statusView struct {
	Email       string   `json:"email" yaml:"email"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Company     string   `json:"company,omitempty" yaml:"company,omitempty"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Token       string   `json:"token" yaml:"token"`
	TokenExpiry string   `json:"token_expiry" yaml:"token_expiry"`
	Store       string   `json:"store" yaml:"store"`
	API         string   `json:"api" yaml:"api"`
	Verified    *bool    `json:"verified,omitempty" yaml:"verified,omitempty"`

	styles ux.Styles
}

func (v statusView) String() string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", v.styles.Label.Render(fmt.Sprintf("%-13s", label+":")), value)
	}
	fmt.Fprintln(&b, v.styles.Title.Render("Logged in as "+v.Email))
	row("Name", v.Name)
	row("Company", v.Company)
	row("Roles", strings.Join(v.Roles, ", "))
	row("Token", v.Token)
	row("Token expiry", v.TokenExpiry)
	row("Store", v.Store)
	row("API", v.API)
	if v.Verified != nil {
		row("Verified", v.styles.Success.Render("yes"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func newStatusCmd(a *App) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in account",
		Long: `Show the signed-in account and where the session is stored. The token
expiry is read from the token when it is a JWT and is informational only:
the server decides when a session ends. --verify asks the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)
			state := a.Session.Snapshot()

			if verify {
				if _, err := a.API.Auth.Me(ctx); err != nil {
					if api.IsAuthorization(err) {
						return sberrors.NewSessionExpiredError()
					}
					return err
				}
				state = a.Session.Snapshot()
			}

			v := statusView{
				Email:       state.Email(),
				Token:       tokeninfo.Mask(state.Token),
				TokenExpiry: tokeninfo.Inspect(state.Token).ExpiryHint(a.opts.Now()),
				Store:       storeDescription(a),
				API:         a.Client.BaseURL(),
				styles:      a.styles(),
			}
			if verify {
				ok := true
				v.Verified = &ok
			}
			if u := state.User; u != nil {
				if u.Profile != nil {
					v.Name = u.Profile.FullName()
					v.Company = u.Profile.Company
				}
				for _, r := range u.Roles {
					v.Roles = append(v.Roles, r.Name)
				}
			}

			f, err := a.formatter()
			if err != nil {
				return err
			}
			return f.Format(v)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "confirm the session with the server")
	return requiresAuth(cmd)
}

func storeDescription(a *App) string {
	s := a.Config.Session
	switch s.Backend {
	case "redis":
		return "redis (" + s.RedisPrefix + "*)"
	case "memory":
		return "memory"
	default:
		return "file (" + s.Dir + ")"
	}
}

func newRegisterCmd(a *App) *cobra.Command {
	var (
		req           backend.RegisterRequest
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account on the backend. Registering does not sign you in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin && req.Email != "" {
				pw, err := readPassword(a.opts.In)
				if err != nil {
					return err
				}
				req.Password = pw
			} else {
				reg, err := a.opts.Prompter.Registration(req.Email)
				if err != nil {
					return notInteractive(err, "Pass --email and --password-stdin when not running in a terminal")
				}
				req.Email, req.Password = reg.Email, reg.Password
				req.FirstName, req.LastName, req.Company = reg.FirstName, reg.LastName, reg.Company
			}
			if req.Email == "" || req.Password == "" {
				return sberrors.New(sberrors.ErrCodeLoginIncomplete, "email and password are required")
			}

			if err := a.API.Auth.Register(a.ctx(cmd), req); err != nil {
				return err
			}

			st := a.styles()
			fmt.Fprintf(a.opts.Out, "%s Account created for %s\n", st.Success.Render("✓"), req.Email)
			fmt.Fprintf(a.opts.Out, "Sign in with: stockbook auth login --email %s\n", req.Email)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Email, "email", "", "account email")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.Company, "company", "", "company")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return guestOnly(cmd)
}
