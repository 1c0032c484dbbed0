package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/stockbook/internal/domain"
	"github.com/felixgeelhaar/stockbook/internal/session"
)

var (
	loadingState  = session.State{IsLoading: true}
	guestState    = session.State{}
	signedInState = session.State{User: &domain.User{Email: "a@b.com"}, Token: "t", IsAuthenticated: true}
)

func TestPolicy_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		state  session.State
		want   Decision
	}{
		{"authenticated while loading", Authenticated, loadingState, Decision{Outcome: Loading}},
		{"authenticated as guest", Authenticated, guestState, Decision{Outcome: Redirect, Target: LoginPath}},
		{"authenticated signed in", Authenticated, signedInState, Decision{Outcome: Render}},
		{"unauthenticated while loading", Unauthenticated, loadingState, Decision{Outcome: Loading}},
		{"unauthenticated as guest", Unauthenticated, guestState, Decision{Outcome: Render}},
		{"unauthenticated signed in", Unauthenticated, signedInState, Decision{Outcome: Redirect, Target: RootPath}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Evaluate(tt.state))
		})
	}
}

func TestPolicy_Mirror(t *testing.T) {
	for _, st := range []session.State{guestState, signedInState} {
		a := Authenticated.Evaluate(st)
		u := Unauthenticated.Evaluate(st)
		assert.NotEqual(t, a.Outcome == Render, u.Outcome == Render, "exactly one policy renders for %+v", st)
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "unknown", Policy(9).String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "redirect", Redirect.String())
	assert.Equal(t, "render", Render.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
