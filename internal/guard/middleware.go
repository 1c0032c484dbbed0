package guard

import (
	"net/http"

	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
	"github.com/felixgeelhaar/stockbook/internal/session"
)

// StateSource yields the current session state. *session.Service satisfies it.
type StateSource interface {
	Snapshot() session.State
}

type options struct {
	loading http.Handler
	metrics *metrics.Metrics
	logger  *log.Logger
}

// Option configures the middleware.
type Option func(*options)

// WithLoadingHandler replaces the default loading page.
func WithLoadingHandler(h http.Handler) Option {
	return func(o *options) { o.loading = h }
}

// WithMetrics counts decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Middleware gates next behind policy p. State is read on every request,
// so a logout is honoured by the very next request.
func Middleware(p Policy, src StateSource, opts ...Option) func(http.Handler) http.Handler {
	o := options{loading: LoadingPage()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrDefault(o.logger).WithComponent("guard")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := p.Evaluate(src.Snapshot())
			o.metrics.RecordGuardDecision(p.String(), d.Outcome.String())

			switch d.Outcome {
			case Loading:
				o.loading.ServeHTTP(w, r)
			case Redirect:
				logger.DebugContext(r.Context(), "guard redirect",
					"policy", p.String(), "path", r.URL.Path, "target", d.Target)
				http.Redirect(w, r, d.Target, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAuthenticated is Middleware(Authenticated, ...).
func RequireAuthenticated(src StateSource, opts ...Option) func(http.Handler) http.Handler {
	return Middleware(Authenticated, src, opts...)
}

// RequireGuest is Middleware(Unauthenticated, ...).
func RequireGuest(src StateSource, opts ...Option) func(http.Handler) http.Handler {
	return Middleware(Unauthenticated, src, opts...)
}

const loadingHTML = `<!doctype html>
<html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>stockbook</title></head>
<body><p>Loading session&hellip;</p></body></html>
`

// LoadingPage answers 503 with a self-refreshing placeholder.
func LoadingPage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(loadingHTML))
	})
}
