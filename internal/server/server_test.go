package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stockbook/internal/health"
	"github.com/felixgeelhaar/stockbook/internal/log"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Addr: ":0"}.withDefaults()
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)

	custom := Config{ShutdownTimeout: time.Second}.withDefaults()
	assert.Equal(t, time.Second, custom.ShutdownTimeout)
}

func TestErrorLogGoesThroughLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelWarn, Format: log.FormatText, Output: log.NewOutput(&buf)})

	srv := New(Config{Addr: "127.0.0.1:0"}, http.NotFoundHandler(), nil, logger)
	require.NotNil(t, srv.httpServer.ErrorLog)

	srv.httpServer.ErrorLog.Print("http: TLS handshake error from 127.0.0.1:5555: EOF")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "component=server")
	assert.Contains(t, buf.String(), "TLS handshake error")
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) health.Report {
	t.Helper()
	var rep health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	return rep
}

func TestProbeHandlers(t *testing.T) {
	p := health.NewProbeManager("1.0.0")
	live := LivenessHandler(p)
	ready := ReadinessHandler(p)

	serve := func(h http.Handler) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec
	}

	rec := serve(live)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, health.StatusHealthy, decodeReport(t, rec).Status)

	rec = serve(ready)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready until marked")

	p.MarkReady()
	rec = serve(ready)
	assert.Equal(t, http.StatusOK, rec.Code)

	p.MarkShutdown()
	assert.Equal(t, http.StatusServiceUnavailable, serve(ready).Code)
	rec = serve(live)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, health.StatusDegraded, decodeReport(t, rec).Status)
}

func TestRunServesUntilCancelled(t *testing.T) {
	p := health.NewProbeManager("1.0.0")
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hi"))
	})

	s := New(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, mux, p, log.Discard())
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	resp, err := http.Get("http://" + s.Addr() + "/hello")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, s.IsShuttingDown())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, s.IsShuttingDown())
	assert.True(t, p.IsShuttingDown())
}

func TestRunListenError(t *testing.T) {
	s := New(Config{Addr: "256.0.0.1:bad"}, http.NotFoundHandler(), nil, nil)
	assert.Error(t, s.Run(context.Background()))
}
