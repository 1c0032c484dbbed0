package backend

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/stockbook/internal/api"
	"github.com/felixgeelhaar/stockbook/internal/domain"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
)

// Auth covers the /auth endpoints.
type Auth struct {
	r Requester
}

// AccountUser is the user object the auth endpoints return. The backend
// calls the profile a persona.
type AccountUser struct {
	Email   string          `json:"email"`
	Persona *domain.Profile `json:"persona,omitempty"`
	Roles   []domain.Role   `json:"roles,omitempty"`
}

// User converts to the session identity.
func (u AccountUser) User() domain.User {
	return domain.User{Email: u.Email, Profile: u.Persona, Roles: u.Roles}
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  AccountUser `json:"user"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
}

// Login exchanges credentials for a token. A wrong password arrives as a
// 401 and goes through the same teardown as any other 401.
func (a *Auth) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	resp, err := a.r.Post(ctx, "auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, normalize(err)
	}

	res, err := api.Decode[LoginResult](resp)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, sberrors.New(sberrors.ErrCodeLoginIncomplete, "login response carried no token")
	}
	if res.User.Email == "" {
		res.User.Email = email
	}
	return &res, nil
}

// Register creates an account. It does not sign in.
func (a *Auth) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := a.r.Post(ctx, "auth/register", req)
	if err != nil {
		return normalize(err)
	}
	if len(resp.Data) == 0 {
		return nil
	}
	_, err = api.Decode[json.RawMessage](resp)
	return err
}

// Me returns the account behind the current credential.
func (a *Auth) Me(ctx context.Context) (*domain.User, error) {
	resp, err := a.r.Get(ctx, "auth/me", nil)
	if err != nil {
		return nil, normalize(err)
	}
	u, err := api.Decode[AccountUser](resp)
	if err != nil {
		return nil, err
	}
	user := u.User()
	return &user, nil
}
