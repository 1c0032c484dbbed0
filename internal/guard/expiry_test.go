package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/session"
	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
)

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

func TestExpiryRedirect_CoalescesUntilReset(t *testing.T) {
	nav := &recordingNavigator{}
	er := NewExpiryRedirect(nav, log.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			er.HandleInvalidation(api.Invalidated{Method: "GET", URL: "/x"})
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{LoginPath}, nav.Targets())
	assert.True(t, er.Fired())

	er.Reset()
	assert.False(t, er.Fired())
	er.HandleInvalidation(api.Invalidated{})
	assert.Len(t, nav.Targets(), 2)
}

func TestExpiryRedirect_NavigatorFunc(t *testing.T) {
	var got string
	er := NewExpiryRedirect(NavigatorFunc(func(target string) { got = target }), log.Discard())
	er.HandleInvalidation(api.Invalidated{})
	assert.Equal(t, LoginPath, got)
}

// TestSessionExpiryScenario walks the whole path: login, reload, a 401 from
// the backend, an empty store and one navigation to the login screen.
func TestSessionExpiryScenario(t *testing.T) {
	ctx := context.Background()
	mem := sessionstore.NewMemoryBackend()
	store := sessionstore.New(mem, sessionstore.WithLogger(log.Discard()))

	svc := session.New(store, session.WithLogger(log.Discard()))
	svc.Init(ctx)
	require.NoError(t, svc.Login(ctx, "a@b.com", "tkn1"))

	token, err := mem.Get(ctx, sessionstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tkn1", token)
	user, err := mem.Get(ctx, sessionstore.KeyUser)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.com"}`, user)

	// simulated application reload
	svc = session.New(store, session.WithLogger(log.Discard()))
	svc.Init(ctx)
	require.True(t, svc.Snapshot().IsAuthenticated)

	nav := &recordingNavigator{}
	er := NewExpiryRedirect(NavigatorFunc(func(target string) {
		nav.Navigate(target)
		svc.Reload(ctx)
	}), log.Discard())
	defer er.ResetOnLogin(svc)()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := api.NewClient(api.Config{BaseURL: srv.URL}, store,
		api.WithLogger(log.Discard()), api.WithInvalidationHandler(er))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Get(ctx, "clients", nil)
			assert.True(t, api.IsAuthorization(err))
		}()
	}
	wg.Wait()

	assert.Empty(t, mem.Keys())
	assert.Equal(t, []string{LoginPath}, nav.Targets())
	assert.False(t, svc.Snapshot().IsAuthenticated)
	assert.Equal(t, LoginPath, Authenticated.Evaluate(svc.Snapshot()).Target)

	// a new login re-arms the redirect
	require.NoError(t, svc.Login(ctx, "a@b.com", "tkn2"))
	assert.False(t, er.Fired())
}
