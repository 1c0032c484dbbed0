// Package guard decides whether a screen may render for the current
// session. The two policies are mirror images: Authenticated protects the
// application, Unauthenticated protects the login and registration screens.
package guard

import (
	"github.com/felixgeelhaar/stockbook/internal/session"
)

// Well-known targets.
const (
	LoginPath = "/auth/login"
	RootPath  = "/"
)

// Policy is a guard policy.
type Policy int

const (
	// Authenticated renders only for a signed-in user.
	Authenticated Policy = iota
	// Unauthenticated renders only when nobody is signed in.
	Unauthenticated
)

func (p Policy) String() string {
	switch p {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Outcome is what a guard tells the caller to do.
type Outcome int

const (
	// Loading means the session is still bootstrapping; show a placeholder.
	Loading Outcome = iota
	// Redirect means navigate to Decision.Target.
	Redirect
	// Render means show the guarded screen.
	Render
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating a policy.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Evaluate applies p to st. It is pure; callers re-evaluate on every
// request or state change.
func (p Policy) Evaluate(st session.State) Decision {
	if st.IsLoading {
		return Decision{Outcome: Loading}
	}
	switch p {
	case Authenticated:
		if !st.IsAuthenticated {
			return Decision{Outcome: Redirect, Target: LoginPath}
		}
	case Unauthenticated:
		if st.IsAuthenticated {
			return Decision{Outcome: Redirect, Target: RootPath}
		}
	}
	return Decision{Outcome: Render}
}
