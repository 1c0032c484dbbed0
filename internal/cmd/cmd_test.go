package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stockbook/internal/exitcode"
	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
	"github.com/felixgeelhaar/stockbook/internal/tui"
)

type fakeBackend struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	auth   []string
}

func (f *fakeBackend) set(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = h
}

func (f *fakeBackend) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	h, ok := f.routes[r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api")]
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func jsonReply(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

type scriptedPrompter struct {
	creds   tui.Credentials
	reg     tui.Registration
	confirm bool
	err     error
	calls   []string
}

func (p *scriptedPrompter) Credentials(defaultEmail string) (tui.Credentials, error) {
	p.calls = append(p.calls, "credentials:"+defaultEmail)
	return p.creds, p.err
}

func (p *scriptedPrompter) Registration(defaultEmail string) (tui.Registration, error) {
	p.calls = append(p.calls, "registration:"+defaultEmail)
	return p.reg, p.err
}

func (p *scriptedPrompter) Confirm(message string, _ bool) (bool, error) {
	p.calls = append(p.calls, "confirm:"+message)
	return p.confirm, p.err
}

type cli struct {
	t        *testing.T
	home     string
	fake     *fakeBackend
	prompter *scriptedPrompter
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	fake := &fakeBackend{routes: map[string]http.HandlerFunc{}}
	fake.set("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			jsonReply(http.StatusUnauthorized, map[string]any{"message": "invalid credentials"})(w, r)
			return
		}
		jsonReply(http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"token": "tkn1",
				"user": map[string]any{
					"email":   body["email"],
					"persona": map[string]any{"id": 2, "first_name": "Ada", "last_name": "Byron", "company": "Acme"},
					"roles":   []map[string]any{{"id": 1, "name": "admin"}},
				},
			},
		})(w, r)
	})
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("STOCKBOOK_API_URL", srv.URL+"/api")
	for _, k := range []string{"STOCKBOOK_API_TIMEOUT", "STOCKBOOK_SESSION_BACKEND", "STOCKBOOK_SESSION_DIR", "STOCKBOOK_LOG_LEVEL", "STOCKBOOK_LOG_FORMAT", "NO_COLOR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	return &cli{t: t, home: home, fake: fake, prompter: &scriptedPrompter{err: tui.ErrNotInteractive}}
}

func (c *cli) run(stdin string, args ...string) (string, string, int) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, Options{
		In:       strings.NewReader(stdin),
		Out:      &out,
		Err:      &errOut,
		Prompter: c.prompter,
		Now:      func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	return out.String(), errOut.String(), code
}

func (c *cli) login() {
	c.t.Helper()
	out, errOut, code := c.run("secret\n", "auth", "login", "--email", "a@b.com", "--password-stdin")
	require.Equal(c.t, exitcode.Success, code, errOut)
	require.Contains(c.t, out, "Logged in as a@b.com")
}

func (c *cli) fileBackend() *sessionstore.FileBackend {
	fb, err := sessionstore.NewFileBackend(filepath.Join(c.home, ".stockbook", "session"))
	require.NoError(c.t, err)
	return fb
}

func TestVersion(t *testing.T) {
	c := newCLI(t)

	out, _, code := c.run("", "version")
	assert.Equal(t, exitcode.Success, code)
	assert.True(t, strings.HasPrefix(out, "stockbook "), out)

	out, _, _ = c.run("", "version", "-o", "json")
	assert.Contains(t, out, `"go_version"`)
}

func TestGuards(t *testing.T) {
	c := newCLI(t)

	_, errOut, code := c.run("", "clients", "list")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "AUTH-001")
	assert.Contains(t, errOut, "stockbook auth login")
	assert.Empty(t, c.fake.authHeaders(), "a blocked command makes no request")

	c.login()

	_, errOut, code = c.run("secret\n", "auth", "login", "--email", "a@b.com", "--password-stdin")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "already logged in as a@b.com")
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	c := newCLI(t)
	c.login()

	token, err := c.fileBackend().Get(context.Background(), sessionstore.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tkn1", token)

	out, errOut, code := c.run("", "auth", "status", "--no-color")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Logged in as a@b.com")
	assert.Contains(t, out, "Ada Byron")
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "opaque token")
	assert.NotContains(t, out, "tkn1", "token is masked")

	out, _, code = c.run("", "auth", "status", "-o", "json")
	require.Equal(t, exitcode.Success, code)
	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "a@b.com", view["email"])
	assert.Equal(t, "Acme", view["company"])
}

func TestLoginFailures(t *testing.T) {
	c := newCLI(t)

	_, errOut, code := c.run("wrong\n", "auth", "login", "--email", "a@b.com", "--password-stdin")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "invalid email or password")
	assert.NotContains(t, errOut, "Signed out", "a rejected login ends no session")

	_, errOut, code = c.run("", "auth", "login")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "--password-stdin")

	c.prompter = &scriptedPrompter{creds: tui.Credentials{Email: "p@q.com", Password: "secret"}}
	out, errOut, code := c.run("", "auth", "login", "--email", "p@q.com")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Logged in as p@q.com")
	assert.Equal(t, []string{"credentials:p@q.com"}, c.prompter.calls)
}

func TestListAndGet(t *testing.T) {
	c := newCLI(t)
	c.login()

	c.fake.set("GET /products", jsonReply(http.StatusOK, map[string]any{
		"success": true,
		"data":    []map[string]any{{"id": 1, "code": "W-1", "name": "Widget", "price": 2.5, "stock": 40}},
	}))
	c.fake.set("GET /products/1", jsonReply(http.StatusOK, map[string]any{"id": 1, "code": "W-1", "name": "Widget"}))

	out, errOut, code := c.run("", "products", "list", "--no-color")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "2.50")

	out, _, code = c.run("", "products", "ls", "-o", "json")
	require.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, `"code": "W-1"`)

	out, _, code = c.run("", "products", "get", "1", "-o", "yaml")
	require.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "name: Widget")

	_, _, code = c.run("", "products", "get", "abc")
	assert.Equal(t, exitcode.UsageError, code)

	for _, h := range c.fake.authHeaders()[1:] {
		assert.Equal(t, "Bearer tkn1", h)
	}
}

func TestDelete(t *testing.T) {
	c := newCLI(t)
	c.login()
	c.fake.set("DELETE /clients/4", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	c.prompter = &scriptedPrompter{confirm: false}
	out, _, code := c.run("", "clients", "delete", "4")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "Aborted.")

	out, errOut, code := c.run("", "clients", "delete", "4", "--yes")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Deleted clients 4")
}

func TestExpiredSessionSignsOut(t *testing.T) {
	c := newCLI(t)
	c.login()
	c.fake.set("GET /warehouses", jsonReply(http.StatusUnauthorized, map[string]any{"message": "token expired"}))

	_, errOut, code := c.run("", "warehouses", "list")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "Signed out")
	assert.Equal(t, 1, strings.Count(errOut, "Signed out"))

	_, err := c.fileBackend().Get(context.Background(), sessionstore.KeyToken)
	assert.ErrorIs(t, err, sessionstore.ErrNotFound)

	_, errOut, code = c.run("", "warehouses", "list")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "AUTH-001")
}

func TestStatusVerify(t *testing.T) {
	c := newCLI(t)
	c.login()

	c.fake.set("GET /auth/me", jsonReply(http.StatusOK, map[string]any{"email": "a@b.com"}))
	out, errOut, code := c.run("", "auth", "status", "--verify")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Verified")

	c.fake.set("GET /auth/me", jsonReply(http.StatusUnauthorized, map[string]any{"message": "revoked"}))
	_, errOut, code = c.run("", "auth", "status", "--verify")
	assert.Equal(t, exitcode.AuthError, code)
	assert.Contains(t, errOut, "AUTH-003")
}

func TestLogout(t *testing.T) {
	c := newCLI(t)

	out, errOut, code := c.run("", "auth", "logout", "--verbose")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "Not logged in.")
	assert.Contains(t, errOut, "session bootstrapped")
	assert.Contains(t, errOut, "source=", "verbose logs carry the call site")

	c.login()
	out, _, code = c.run("", "auth", "logout")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "Logged out")

	_, _, code = c.run("", "auth", "status")
	assert.Equal(t, exitcode.AuthError, code)
}

func TestRegister(t *testing.T) {
	c := newCLI(t)

	var got map[string]string
	var mu sync.Mutex
	c.fake.set("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})

	out, errOut, code := c.run("pw\n", "auth", "register", "--email", "n@x.com", "--company", "Acme", "--password-stdin")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Account created for n@x.com")

	mu.Lock()
	assert.Equal(t, "Acme", got["company"])
	assert.Equal(t, "pw", got["password"])
	mu.Unlock()

	_, err := c.fileBackend().Get(context.Background(), sessionstore.KeyToken)
	assert.ErrorIs(t, err, sessionstore.ErrNotFound, "registering does not sign in")

	c.fake.set("POST /auth/register", jsonReply(http.StatusUnprocessableEntity, map[string]any{
		"message": "validation failed",
		"errors":  map[string]any{"email": "has already been taken"},
	}))
	_, errOut, code = c.run("pw\n", "auth", "register", "--email", "n@x.com", "--password-stdin")
	assert.Equal(t, exitcode.GeneralError, code)
	assert.Contains(t, errOut, "has already been taken")
}

func TestConfigCommands(t *testing.T) {
	c := newCLI(t)

	out, errOut, code := c.run("", "config", "show", "--api-url", "https://inventory.example.com/api", "--api-timeout", "2500")
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "base_url: https://inventory.example.com/api")
	assert.Contains(t, out, "timeout: 2.5s")

	path := filepath.Join(c.home, "custom.yaml")
	out, errOut, code = c.run("", "config", "init", "--config", path)
	require.Equal(t, exitcode.Success, code, errOut)
	assert.Contains(t, out, "Wrote "+path)
	assert.FileExists(t, path)

	_, errOut, code = c.run("", "config", "init", "--config", path)
	assert.Equal(t, exitcode.ConfigError, code)
	assert.Contains(t, errOut, "--force")

	_, _, code = c.run("", "config", "init", "--config", path, "--force")
	assert.Equal(t, exitcode.Success, code)

	_, _, code = c.run("", "clients", "list", "--api-timeout=-5")
	assert.Equal(t, exitcode.ConfigError, code)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// servedConsole is a running `stockbook serve` for the current test environment.
type servedConsole struct {
	t      *testing.T
	addr   string
	client *http.Client
	stop   func()
}

func startServe(t *testing.T) *servedConsole {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan int, 1)
	go func() {
		done <- Run(ctx, []string{"serve", "--addr", "127.0.0.1:0", "--shutdown-timeout", "1s"}, Options{
			In: strings.NewReader(""), Out: out, Err: io.Discard,
		})
	}()

	addrRe := regexp.MustCompile(`http://(127\.0\.0\.1:\d+)`)
	c := &servedConsole{
		t:      t,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
	}
	require.Eventually(t, func() bool {
		m := addrRe.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		c.addr = m[1]
		return true
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := c.client.Get("http://" + c.addr + "/health/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	var once sync.Once
	c.stop = func() {
		once.Do(func() {
			cancel()
			select {
			case code := <-done:
				assert.Equal(t, exitcode.Success, code)
			case <-time.After(5 * time.Second):
				t.Fatal("serve did not stop")
			}
		})
	}
	t.Cleanup(c.stop)
	return c
}

// get requests path and returns the status and Location header.
func (c *servedConsole) get(path string) (int, string) {
	c.t.Helper()
	resp, err := c.client.Get("http://" + c.addr + path)
	require.NoError(c.t, err)
	resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Location")
}

func TestServe(t *testing.T) {
	newCLI(t)
	c := startServe(t)

	status, location := c.get("/")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/auth/login", location)

	c.stop()
}

func TestServeSignsOutAfterLogoutElsewhere(t *testing.T) {
	cli := newCLI(t)
	cli.login()
	cli.fake.set("GET /clients", jsonReply(http.StatusOK, map[string]any{"success": true, "data": []any{}}))

	c := startServe(t)
	status, _ := c.get("/clients")
	require.Equal(t, http.StatusOK, status, "restored session renders protected pages")

	// logging out in another terminal empties the shared store; the
	// console still holds the session in memory and now sends no token
	_, errOut, code := cli.run("", "auth", "logout")
	require.Equal(t, exitcode.Success, code, errOut)
	cli.fake.set("GET /clients", jsonReply(http.StatusUnauthorized, map[string]any{"message": "missing token"}))

	status, location := c.get("/clients")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/auth/login?expired=1", location)
	headers := cli.fake.authHeaders()
	assert.Empty(t, headers[len(headers)-1], "the console request carried no credential")

	status, _ = c.get("/auth/login")
	assert.Equal(t, http.StatusOK, status)

	status, location = c.get("/")
	assert.Equal(t, http.StatusSeeOther, status)
	assert.Equal(t, "/auth/login", location)
}
