// Package console serves the browser front end: guarded pages over the
// session service and the feature API modules.
package console

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/stockbook/internal/backend"
	"github.com/felixgeelhaar/stockbook/internal/guard"
	"github.com/felixgeelhaar/stockbook/internal/health"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
	"github.com/felixgeelhaar/stockbook/internal/server"
	"github.com/felixgeelhaar/stockbook/internal/session"
)

// Deps are the collaborators the console is built from.
type Deps struct {
	Session *session.Service
	API     *backend.API
	Probes  *health.ProbeManager
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         *log.Logger
}

// Console holds the router and page handlers.
type Console struct {
	session *session.Service
	api     *backend.API
	probes  *health.ProbeManager
	metrics *metrics.Metrics
	promh   http.Handler
	logger  *log.Logger
	pages   *pages
}

// New builds a Console.
func New(d Deps) *Console {
	return &Console{
		session: d.Session,
		api:     d.API,
		probes:  d.Probes,
		metrics: d.Metrics,
		promh:   d.MetricsHandler,
		logger:  log.OrDefault(d.Logger).WithComponent("console"),
		pages:   mustParsePages(),
	}
}

// Start restores the session in the background so the listener is up
// immediately; guards answer with the loading page until it finishes.
func (c *Console) Start(ctx context.Context) {
	go func() {
		c.session.Init(ctx)
		if c.probes != nil {
			c.probes.MarkReady()
		}
		c.logger.Debug("session restored", "phase", string(c.session.Snapshot().Phase()))
	}()
}

// Router returns the console's HTTP handler.
func (c *Console) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(c.requestLog)

	if c.probes != nil {
		r.Get("/health/live", server.LivenessHandler(c.probes))
		r.Get("/health/ready", server.ReadinessHandler(c.probes))
	}
	if c.promh != nil {
		r.Handle("/metrics", c.promh)
	}

	opts := []guard.Option{guard.WithMetrics(c.metrics), guard.WithLogger(c.logger)}

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireGuest(c.session, opts...))
		r.Get(guard.LoginPath, c.loginForm)
		r.Post(guard.LoginPath, c.login)
		r.Get("/auth/register", c.registerForm)
		r.Post("/auth/register", c.register)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAuthenticated(c.session, opts...))
		r.Get(guard.RootPath, c.dashboard)
		r.Get("/clients", c.clients)
		r.Get("/products", c.products)
		r.Get("/warehouses", c.warehouses)
		r.Get("/transactions", c.transactions)
		r.Post("/auth/logout", c.logout)
	})

	return r
}

func (c *Console) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		c.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// SessionNavigator is the console's reaction to an invalidated session:
// the store is already empty, so reloading the service turns the next
// guarded request into a redirect to the login page.
func SessionNavigator(svc *session.Service, logger *log.Logger) guard.Navigator {
	logger = log.OrDefault(logger).WithComponent("console")
	return guard.NavigatorFunc(func(target string) {
		svc.Reload(context.Background())
		logger.Info("session invalidated, next request goes to login", "target", target)
	})
}
