// Package session holds the in-memory view of who is signed in.
//
// A Service moves through three phases: bootstrapping until Init has read
// the durable store, then authenticated or unauthenticated. Only Login and
// Logout change the view afterwards; Reload repeats the bootstrap read.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/felixgeelhaar/stockbook/internal/domain"
	"github.com/felixgeelhaar/stockbook/internal/errors"
	"github.com/felixgeelhaar/stockbook/internal/log"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
	"github.com/felixgeelhaar/stockbook/internal/sessionstore"
)

// Store is the durable side of the session. *sessionstore.Store satisfies it.
type Store interface {
	Load(ctx context.Context) (sessionstore.Record, bool)
	Save(ctx context.Context, rec sessionstore.Record) error
	Clear(ctx context.Context) error
}

// Service is the application-wide session. It is safe for concurrent use.
type Service struct {
	store   Store
	logger  *log.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	state       State
	initialized bool
	// generation increments on every explicit transition so a bootstrap read
	// that raced with Login or Logout does not overwrite their result.
	generation uint64
	listeners  map[int]func(State)
	nextID     int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records state transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service in the bootstrapping phase. Call Init to read the store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		state:     bootstrapping(),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger).WithComponent("session")
	return s
}

// Init reads the persisted session and leaves the bootstrapping phase.
// Only the first call does any work.
func (s *Service) Init(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	gen := s.generation
	s.mu.Unlock()

	s.bootstrap(ctx, gen)
}

// Reload discards the in-memory view and bootstraps again from the store,
// as a fresh application load would. The bootstrapping state is applied in
// the same critical section as the generation bump, so a Login that lands
// while the store is read keeps its result.
func (s *Service) Reload(ctx context.Context) {
	s.mu.Lock()
	s.initialized = true
	s.generation++
	gen := s.generation
	s.state = bootstrapping()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.notify(bootstrapping(), listeners)
	s.bootstrap(ctx, gen)
}

func (s *Service) bootstrap(ctx context.Context, gen uint64) {
	next := unauthenticated()
	if rec, ok := s.store.Load(ctx); ok {
		user := rec.User
		next = authenticated(&user, rec.Token)
	}
	if !s.transition(next, &gen) {
		s.logger.DebugContext(ctx, "bootstrap result superseded by an explicit transition")
		return
	}
	s.logger.DebugContext(ctx, "session bootstrapped", "phase", string(next.Phase()))
}

// LoginOption attaches optional identity data at login.
type LoginOption func(*domain.User)

// WithProfile attaches the person/company record.
func WithProfile(p domain.Profile) LoginOption {
	return func(u *domain.User) { u.Profile = &p }
}

// WithRoles attaches role assignments.
func WithRoles(roles ...domain.Role) LoginOption {
	return func(u *domain.User) {
		u.Roles = append([]domain.Role(nil), roles...)
	}
}

// WithDetails copies the profile and roles of u. Its email is ignored.
func WithDetails(u domain.User) LoginOption {
	return func(dst *domain.User) {
		c := u.Clone()
		dst.Profile = c.Profile
		dst.Roles = c.Roles
	}
}

// Login persists the credential and user, then marks the session
// authenticated. When persistence fails the in-memory view is left as it was.
func (s *Service) Login(ctx context.Context, email, token string, opts ...LoginOption) error {
	email = strings.TrimSpace(email)
	if email == "" || token == "" {
		return errors.New(errors.ErrCodeLoginIncomplete, "login requires both an email and a token")
	}

	user := domain.User{Email: email}
	for _, opt := range opts {
		opt(&user)
	}

	if err := s.store.Save(ctx, sessionstore.Record{Token: token, User: user}); err != nil {
		return errors.NewStoreWriteError(err)
	}

	s.bump()
	s.transition(authenticated(&user, token), nil)
	s.logger.InfoContext(ctx, "logged in", "email", email)
	return nil
}

// Logout clears the store and marks the session unauthenticated. The
// in-memory view is cleared even when the store reports an error.
func (s *Service) Logout(ctx context.Context) error {
	clearErr := s.store.Clear(ctx)

	s.bump()
	s.transition(unauthenticated(), nil)

	if clearErr != nil {
		s.logger.WithError(clearErr).WarnContext(ctx, "session store clear failed during logout")
		return errors.Wrap(errors.ErrCodeStoreClear, "failed to clear persisted session", clearErr)
	}
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn to be called after every transition. The returned
// function unregisters it.
func (s *Service) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) bump() {
	s.mu.Lock()
	s.initialized = true
	s.generation++
	s.mu.Unlock()
}

// transition replaces the state and notifies listeners outside the lock.
// When gen is non-nil the change only applies if no other transition has
// bumped the generation since gen was taken.
func (s *Service) transition(next State, gen *uint64) bool {
	s.mu.Lock()
	if gen != nil && *gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.state = next
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.notify(next, listeners)
	return true
}

func (s *Service) listenersLocked() []func(State) {
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func (s *Service) notify(st State, listeners []func(State)) {
	s.metrics.RecordTransition(string(st.Phase()))
	for _, fn := range listeners {
		fn(st.clone())
	}
}
