package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stockbook/internal/domain"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
)

func newStore(t *testing.T) (*sessionstore.Store, *sessionstore.MemoryBackend) {
	t.Helper()
	mem := sessionstore.NewMemoryBackend()
	return sessionstore.New(mem, sessionstore.WithLogger(log.Discard())), mem
}

func newTestClient(t *testing.T, srv *httptest.Server, store CredentialStore, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	c, err := NewClient(Config{BaseURL: srv.URL + "/api"}, store, opts...)
	require.NoError(t, err)
	return c
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)

	cfg = Config{BaseURL: "https://inv.example.com", Timeout: time.Second}.WithDefaults()
	assert.Equal(t, "https://inv.example.com", cfg.BaseURL)
	assert.Equal(t, time.Second, cfg.Timeout)
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	store, _ := newStore(t)
	for _, raw := range []string{"ftp://x", "localhost:3000", "http://[::1"} {
		_, err := NewClient(Config{BaseURL: raw}, store)
		assert.Error(t, err, raw)
	}
}

func TestClient_DefaultHeadersAndVerbs(t *testing.T) {
	type seen struct {
		method, path, query, contentType, accept, requestID, body string
	}
	var got []seen

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = append(got, seen{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.RawQuery,
			contentType: r.Header.Get("Content-Type"),
			accept:      r.Header.Get("Accept"),
			requestID:   r.Header.Get(HeaderRequestID),
			body:        string(b),
		})
		w.Header().Set("X-Total", "3")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	c := newTestClient(t, srv, store)
	ctx := context.Background()

	resp, err := c.Get(ctx, "/clients", url.Values{"page": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "3", resp.Headers.Get("X-Total"))
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(resp.Data))

	_, err = c.Post(ctx, "products", map[string]any{"name": "Widget"})
	require.NoError(t, err)
	_, err = c.Patch(ctx, "products/4", map[string]any{"price": 2.5})
	require.NoError(t, err)
	_, err = c.Delete(ctx, "products/4")
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, "GET", got[0].method)
	assert.Equal(t, "/api/clients", got[0].path)
	assert.Equal(t, "page=2", got[0].query)
	assert.Equal(t, "POST", got[1].method)
	assert.Equal(t, "/api/products", got[1].path)
	assert.JSONEq(t, `{"name":"Widget"}`, got[1].body)
	assert.Equal(t, "PATCH", got[2].method)
	assert.Equal(t, "/api/products/4", got[2].path)
	assert.Equal(t, "DELETE", got[3].method)
	assert.Empty(t, got[3].body)

	ids := map[string]bool{}
	for _, s := range got {
		assert.Equal(t, "application/json", s.contentType)
		assert.Equal(t, "application/json", s.accept)
		_, err := uuid.Parse(s.requestID)
		assert.NoError(t, err)
		ids[s.requestID] = true
	}
	assert.Len(t, ids, 4, "request IDs must be unique")
}

func TestClient_AbsoluteURLBypassesBase(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	}))
	defer srv.Close()

	store, _ := newStore(t)
	c, err := NewClient(Config{BaseURL: "http://unused.invalid/api"}, store, WithLogger(log.Discard()))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), srv.URL+"/health", nil)
	require.NoError(t, err)
	assert.Equal(t, "/health", path)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"validation failed","errors":{"email":"is taken"}}`))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	c := newTestClient(t, srv, store)

	resp, err := c.Post(context.Background(), "auth/register", map[string]string{"email": "a@b.com"})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)

	e := Normalize(err)
	assert.Equal(t, KindServer, e.Kind)
	assert.Equal(t, "validation failed", e.Message)
	assert.Equal(t, []string{"is taken"}, e.Fields["email"])
}

func TestClient_LocalFailureIsNotTransport(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	store, _ := newStore(t)
	c := newTestClient(t, srv, store)

	_, err := c.Post(context.Background(), "clients", map[string]any{"bad": make(chan int)})
	require.Error(t, err)

	e := Normalize(err)
	assert.Equal(t, KindRequest, e.Kind)
	assert.Contains(t, e.Message, "failed to marshal request body")
	assert.False(t, IsTimeout(err))
	assert.Zero(t, hits)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	store, _ := newStore(t)
	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, store, WithLogger(log.Discard()))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	e := Normalize(err)
	assert.Equal(t, KindTransport, e.Kind)
	assert.Zero(t, e.Status)
	assert.Equal(t, MessageUnreachable, e.Message)
}

func TestClient_Metrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	store, _ := newStore(t)
	c := newTestClient(t, srv, store, WithMetrics(m))

	_, _ = c.Get(context.Background(), "ok", nil)
	_, _ = c.Get(context.Background(), "missing", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "4xx")))
}

func TestClient_DecodeEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope[[]domain.Warehouse]{
			Success: true,
			Data:    []domain.Warehouse{{ID: 1, Name: "Main"}},
		})
	}))
	defer srv.Close()

	store, _ := newStore(t)
	c := newTestClient(t, srv, store)
	resp, err := c.Get(context.Background(), "warehouses", nil)
	require.NoError(t, err)

	whs, err := Decode[[]domain.Warehouse](resp)
	require.NoError(t, err)
	require.Len(t, whs, 1)
	assert.Equal(t, "Main", whs[0].Name)
}
