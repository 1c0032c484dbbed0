package guard

import (
	"sync"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/session"
)

// Navigator performs a navigation. The console and the CLI each supply one.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate calls f(target).
func (f NavigatorFunc) Navigate(target string) {
	f(target)
}

// ExpiryRedirect turns session invalidation events into a single navigation
// to the login screen. Further events are ignored until Reset, so a burst of
// concurrent 401s yields one redirect.
type ExpiryRedirect struct {
	nav    Navigator
	target string
	logger *log.Logger

	mu    sync.Mutex
	fired bool
}

// NewExpiryRedirect creates an ExpiryRedirect that navigates to LoginPath.
func NewExpiryRedirect(nav Navigator, logger *log.Logger) *ExpiryRedirect {
	return &ExpiryRedirect{
		nav:    nav,
		target: LoginPath,
		logger: log.OrDefault(logger).WithComponent("guard"),
	}
}

// HandleInvalidation implements api.InvalidationHandler.
func (e *ExpiryRedirect) HandleInvalidation(ev api.Invalidated) {
	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return
	}
	e.fired = true
	e.mu.Unlock()

	e.logger.Info("redirecting to login after session invalidation",
		"method", ev.Method, "url", ev.URL, "target", e.target)
	e.nav.Navigate(e.target)
}

// Reset re-arms the redirect.
func (e *ExpiryRedirect) Reset() {
	e.mu.Lock()
	e.fired = false
	e.mu.Unlock()
}

// Fired reports whether a redirect has happened since the last Reset.
func (e *ExpiryRedirect) Fired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

// ResetOnLogin re-arms the redirect whenever svc becomes authenticated. The
// returned function stops watching.
func (e *ExpiryRedirect) ResetOnLogin(svc *session.Service) (cancel func()) {
	return svc.Subscribe(func(st session.State) {
		if st.IsAuthenticated {
			e.Reset()
		}
	})
}
