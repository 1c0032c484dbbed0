package session

import "github.com/felixgeelhaar/stockbook/internal/domain"

// Phase names a node of the session state machine.
type Phase string

const (
	PhaseBootstrapping   Phase = "bootstrapping"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// State is a read-only view of the session.
type State struct {
	User            *domain.User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

// Phase reports which state machine node s belongs to.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseBootstrapping
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Email returns the signed-in email, or "" when unauthenticated.
func (s State) Email() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

func bootstrapping() State {
	return State{IsLoading: true}
}

func unauthenticated() State {
	return State{}
}

// authenticated is the only constructor that sets IsAuthenticated, and it
// derives it from the user and token it was given.
func authenticated(user *domain.User, token string) State {
	return State{
		User:            user,
		Token:           token,
		IsAuthenticated: user != nil && token != "",
	}
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}
