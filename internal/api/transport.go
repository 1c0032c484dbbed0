package api

import (
	"context"
	"net/http"
	"time"

	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
)

// CredentialSource yields the durable credential. The transport reads it
// straight from the store so it works before any session view exists.
type CredentialSource interface {
	Credential(ctx context.Context) (string, bool)
}

// SessionClearer wipes every persisted session key.
type SessionClearer interface {
	Clear(ctx context.Context) error
}

// CredentialStore is what AuthTransport needs from the session store.
type CredentialStore interface {
	CredentialSource
	SessionClearer
}

// Invalidated describes a 401 that tore down the session.
type Invalidated struct {
	Method        string
	URL           string
	HadCredential bool
	At            time.Time
}

// InvalidationHandler reacts to session invalidation, typically by
// navigating to the login screen.
type InvalidationHandler interface {
	HandleInvalidation(Invalidated)
}

// InvalidationHandlerFunc adapts a function to InvalidationHandler.
type InvalidationHandlerFunc func(Invalidated)

// HandleInvalidation calls f(ev).
func (f InvalidationHandlerFunc) HandleInvalidation(ev Invalidated) {
	f(ev)
}

// AuthTransport is an http.RoundTripper that attaches the bearer credential
// on the way out and clears the session when the server answers 401.
type AuthTransport struct {
	// Base performs the request. nil means http.DefaultTransport.
	Base          http.RoundTripper
	Store         CredentialStore
	OnInvalidated InvalidationHandler
	Logger        *log.Logger
	Metrics       *metrics.Metrics
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	token, hasToken := t.Store.Credential(ctx)
	if hasToken {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.invalidate(ctx, out, hasToken)
	}
	return resp, nil
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// invalidate runs for every 401, with or without a credential; clearing an
// empty store is harmless.
func (t *AuthTransport) invalidate(ctx context.Context, req *http.Request, hadCredential bool) {
	logger := log.OrDefault(t.Logger)

	// The caller may cancel as soon as it sees the response; cleanup must still run.
	if err := t.Store.Clear(context.WithoutCancel(ctx)); err != nil {
		logger.WithError(err).WarnContext(ctx, "failed to clear session after 401")
	}
	t.Metrics.RecordInvalidation(hadCredential)

	ev := Invalidated{
		Method:        req.Method,
		URL:           req.URL.Redacted(),
		HadCredential: hadCredential,
		At:            time.Now(),
	}
	logger.InfoContext(ctx, "session invalidated by server",
		"method", ev.Method, "url", ev.URL, "had_credential", hadCredential)

	if t.OnInvalidated != nil {
		t.OnInvalidated.HandleInvalidation(ev)
	}
}
