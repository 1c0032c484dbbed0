package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/stockbook/internal/domain"
	"github.com/felixgeelhaar/stockbook/internal/log"
)

// Persisted keys of the current layout.
const (
	KeyToken         = "token"
	KeyUser          = "user"
	KeyProfile       = "profile"
	KeyRoles         = "roles"
	KeySchemaVersion = "schema_version"
)

// SchemaVersion is the layout written by Save. Layouts without a
// schema_version entry are version 1 and carry only token and user.
const SchemaVersion = 2

// LegacyKeys were written by earlier clients. They are swept by Clear and
// never read.
var LegacyKeys = []string{
	"auth_token",
	"access_token",
	"authToken",
	"user_data",
	"userData",
	"currentUser",
	"persona",
	"roles_user",
}

// CurrentKeys lists every key of the current layout.
var CurrentKeys = []string{KeyToken, KeyUser, KeyProfile, KeyRoles, KeySchemaVersion}

// AllKeys returns the current keys followed by the legacy ones.
func AllKeys() []string {
	keys := make([]string, 0, len(CurrentKeys)+len(LegacyKeys))
	keys = append(keys, CurrentKeys...)
	return append(keys, LegacyKeys...)
}

// Record is a persisted credential together with its user.
type Record struct {
	Token string
	User  domain.User
}

// userEntry is the on-disk shape of the user key. Profile and roles live
// under their own keys.
type userEntry struct {
	Email string `json:"email"`
}

// errCorrupt marks persisted data that cannot be trusted.
var errCorrupt = errors.New("corrupt session data")

// Store is the only reader and writer of persisted session keys.
type Store struct {
	backend Backend
	logger  *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report recovered corruption.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger).WithComponent("sessionstore")
	return s
}

// Backend returns the underlying key-value backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Save persists rec. The token is written last so an interrupted save never
// leaves a credential without its user. If any write fails the store is
// cleared and the write error returned.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.Token == "" {
		return fmt.Errorf("token is required")
	}
	if rec.User.Email == "" {
		return fmt.Errorf("user email is required")
	}

	if err := s.write(ctx, rec); err != nil {
		if cerr := s.Clear(ctx); cerr != nil {
			s.logger.WithError(cerr).WarnContext(ctx, "failed to roll back partial session write")
		}
		return err
	}
	return nil
}

func (s *Store) write(ctx context.Context, rec Record) error {
	userJSON, err := json.Marshal(userEntry{Email: rec.User.Email})
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	if err := s.backend.Set(ctx, KeySchemaVersion, strconv.Itoa(SchemaVersion)); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, KeyUser, string(userJSON)); err != nil {
		return err
	}

	if rec.User.Profile != nil {
		data, err := json.Marshal(rec.User.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		if err := s.backend.Set(ctx, KeyProfile, string(data)); err != nil {
			return err
		}
	} else if err := s.backend.Delete(ctx, KeyProfile); err != nil {
		return err
	}

	if len(rec.User.Roles) > 0 {
		data, err := json.Marshal(rec.User.Roles)
		if err != nil {
			return fmt.Errorf("encode roles: %w", err)
		}
		if err := s.backend.Set(ctx, KeyRoles, string(data)); err != nil {
			return err
		}
	} else if err := s.backend.Delete(ctx, KeyRoles); err != nil {
		return err
	}

	return s.backend.Set(ctx, KeyToken, rec.Token)
}

// Clear deletes every current and legacy key. Missing keys are fine. All
// deletions are attempted; the first failure is returned.
func (s *Store) Clear(ctx context.Context) error {
	var first error
	for _, key := range AllKeys() {
		if err := s.backend.Delete(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Load reconstructs the persisted record. It never fails: missing or
// partial data reports false, and corrupt data is cleared first. A backend
// read failure also reports false but leaves the data alone.
func (s *Store) Load(ctx context.Context) (Record, bool) {
	rec, err := s.read(ctx)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, ErrNotFound), errors.Is(err, errCorrupt):
		if errors.Is(err, errCorrupt) {
			s.logger.WithError(err).WarnContext(ctx, "discarding corrupt session")
		}
		if cerr := s.Clear(ctx); cerr != nil {
			s.logger.WithError(cerr).WarnContext(ctx, "failed to clear session")
		}
		return Record{}, false
	default:
		s.logger.WithError(err).ErrorContext(ctx, "failed to read session")
		return Record{}, false
	}
}

func (s *Store) read(ctx context.Context) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errCorrupt, r)
		}
	}()

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return Record{}, err
	}

	token, err := s.backend.Get(ctx, KeyToken)
	if err != nil {
		return Record{}, err
	}
	if token == "" {
		return Record{}, fmt.Errorf("%w: empty token", errCorrupt)
	}

	raw, err := s.backend.Get(ctx, KeyUser)
	if err != nil {
		return Record{}, err
	}
	var u userEntry
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return Record{}, fmt.Errorf("%w: user: %v", errCorrupt, err)
	}
	if u.Email == "" {
		return Record{}, fmt.Errorf("%w: user has no email", errCorrupt)
	}

	rec = Record{Token: token, User: domain.User{Email: u.Email}}
	if version < 2 {
		return rec, nil
	}

	if raw, err := s.optional(ctx, KeyProfile); err != nil {
		return Record{}, err
	} else if raw != "" {
		var p domain.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return Record{}, fmt.Errorf("%w: profile: %v", errCorrupt, err)
		}
		rec.User.Profile = &p
	}

	if raw, err := s.optional(ctx, KeyRoles); err != nil {
		return Record{}, err
	} else if raw != "" {
		var roles []domain.Role
		if err := json.Unmarshal([]byte(raw), &roles); err != nil {
			return Record{}, fmt.Errorf("%w: roles: %v", errCorrupt, err)
		}
		rec.User.Roles = roles
	}

	return rec, nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	raw, err := s.optional(ctx, KeySchemaVersion)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 1, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > SchemaVersion {
		return 0, fmt.Errorf("%w: unsupported schema version %q", errCorrupt, raw)
	}
	return v, nil
}

// optional reads key, mapping a missing entry to "".
func (s *Store) optional(ctx context.Context, key string) (string, error) {
	v, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Credential returns the persisted token. It reads only the token entry.
func (s *Store) Credential(ctx context.Context) (string, bool) {
	token, err := s.backend.Get(ctx, KeyToken)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WithError(err).WarnContext(ctx, "failed to read credential")
		}
		return "", false
	}
	return token, token != ""
}
