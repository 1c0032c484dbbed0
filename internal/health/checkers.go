package health

import (
	"context"
	"net/http"
	"time"

	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
)

type pinger interface {
	Health(ctx context.Context) error
}

// StoreChecker probes the session store backend. Backends that expose
// Health (redis) are pinged; the others are exercised with a read.
type StoreChecker struct {
	backend sessionstore.Backend
}

// NewStoreChecker checks b.
func NewStoreChecker(b sessionstore.Backend) *StoreChecker {
	return &StoreChecker{backend: b}
}

func (c *StoreChecker) Name() string { return "session-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	if p, ok := c.backend.(pinger); ok {
		if err := p.Health(ctx); err != nil {
			return Unhealthy("session store unreachable").WithDetail("error", err.Error())
		}
		return Healthy("session store reachable")
	}

	_, err := c.backend.Get(ctx, sessionstore.KeySchemaVersion)
	if err != nil && err != sessionstore.ErrNotFound {
		return Unhealthy("session store unreadable").WithDetail("error", err.Error())
	}
	return Healthy("session store readable")
}

// APIChecker reports whether the backend answers at all. Any HTTP status
// counts as reachable; the request carries no credential.
type APIChecker struct {
	baseURL string
	client  *http.Client
}

// NewAPIChecker probes baseURL with a HEAD request.
func NewAPIChecker(baseURL string, timeout time.Duration) *APIChecker {
	return &APIChecker{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *APIChecker) Name() string { return "api" }

func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return Unhealthy("invalid api url").WithDetail("error", err.Error())
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		// Session state stays usable offline; only data pages fail.
		return Degraded("api unreachable").WithDetail("error", err.Error())
	}
	resp.Body.Close()

	r := Healthy("api reachable").WithDetail("status", resp.StatusCode)
	r.Latency = time.Since(start)
	return r
}
