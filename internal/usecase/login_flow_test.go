package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"shoppingcart/internal/repository/repotest"
	"shoppingcart/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =====================
// Fakes
// =====================

type fakeProvider struct {
	claims []usecase.Claim
	err    error
	codes  []string
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) ([]usecase.Claim, error) {
	p.codes = append(p.codes, code)
	return p.claims, p.err
}

type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("state-%d", g.n)
}

func newLoginFlow(p *fakeProvider) (*usecase.LoginFlow, *repotest.Users) {
	users := repotest.NewUsers()
	auth := newAuthUsecase(users)
	return usecase.NewLoginFlow(p, auth, users, &seqIDs{}, zap.NewNop()), users
}

// =====================
// Begin / Callback
// =====================

func TestLoginFlow_Begin(t *testing.T) {
	flow, _ := newLoginFlow(&fakeProvider{})

	c := flow.Begin()
	assert.Equal(t, "state-1", c.State)
	assert.Equal(t, usecase.StateChallenged, c.Status)
	assert.Contains(t, c.RedirectURL, "state=state-1")

	// 毎回新しいstate
	assert.NotEqual(t, c.State, flow.Begin().State)
}

func TestLoginFlow_Callback_Success(t *testing.T) {
	p := &fakeProvider{claims: googleClaims("sub-1", "alice@example.com", "Alice")}
	flow, users := newLoginFlow(p)

	res, err := flow.Callback(context.Background(), usecase.CallbackInput{
		State: "s", ExpectedState: "s", Code: "code-1",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, usecase.StateAuthenticated, res.Data.Status)
	assert.Equal(t, "Welcome, Alice!", res.Message)
	assert.Equal(t, []string{"code-1"}, p.codes)
	assert.Equal(t, 1, users.Count())
}

func TestLoginFlow_Callback_ProviderError(t *testing.T) {
	p := &fakeProvider{}
	flow, _ := newLoginFlow(p)

	res, err := flow.Callback(context.Background(), usecase.CallbackInput{
		State: "s", ExpectedState: "s", ProviderError: "access_denied",
	})
	assert.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, usecase.KindAuthProvider, res.Kind)
	assert.Equal(t, "Authentication failed: access_denied", res.Message)
	assert.Empty(t, p.codes)
}

func TestLoginFlow_Callback_UnknownFailure(t *testing.T) {
	tests := []struct {
		name string
		in   usecase.CallbackInput
	}{
		{"state mismatch", usecase.CallbackInput{State: "a", ExpectedState: "b", Code: "c"}},
		{"no state cookie", usecase.CallbackInput{State: "a", Code: "c"}},
		{"no code", usecase.CallbackInput{State: "a", ExpectedState: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{claims: googleClaims("sub", "x@example.com", "")}
			flow, users := newLoginFlow(p)

			res, err := flow.Callback(context.Background(), tt.in)
			assert.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, "Authentication failed for an unknown reason.", res.Message)
			assert.Empty(t, p.codes)
			assert.Equal(t, 0, users.Count())
		})
	}
}

func TestLoginFlow_Callback_ExchangeRejected(t *testing.T) {
	p := &fakeProvider{err: fmt.Errorf("%w: invalid_grant", usecase.ErrProviderRejected)}
	flow, _ := newLoginFlow(p)

	res, err := flow.Callback(context.Background(), usecase.CallbackInput{State: "s", ExpectedState: "s", Code: "bad"})
	assert.NoError(t, err)
	assert.Equal(t, usecase.KindAuthProvider, res.Kind)
	assert.Contains(t, res.Message, "invalid_grant")
}

func TestLoginFlow_Callback_ExchangeTransportError(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection reset")}
	flow, _ := newLoginFlow(p)

	_, err := flow.Callback(context.Background(), usecase.CallbackInput{State: "s", ExpectedState: "s", Code: "c"})
	assert.EqualError(t, err, "connection reset")
}

func TestLoginFlow_Callback_NoEmailClaim(t *testing.T) {
	p := &fakeProvider{claims: googleClaims("sub-1", "", "Alice")}
	flow, users := newLoginFlow(p)

	res, err := flow.Callback(context.Background(), usecase.CallbackInput{State: "s", ExpectedState: "s", Code: "c"})
	assert.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, usecase.KindAuthClaims, res.Kind)
	assert.Nil(t, res.Data.User)
	assert.Equal(t, 0, users.Count())
}

// =====================
// Logout
// =====================

func TestLoginFlow_Logout_BumpsSessionVersion(t *testing.T) {
	p := &fakeProvider{claims: googleClaims("sub-1", "alice@example.com", "Alice")}
	flow, users := newLoginFlow(p)
	ctx := context.Background()

	in, err := flow.Callback(ctx, usecase.CallbackInput{State: "s", ExpectedState: "s", Code: "c"})
	require.NoError(t, err)
	require.True(t, in.Success)
	before := in.Data.User.SessionVersion

	res, err := flow.Logout(ctx, in.Data.User.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, usecase.StateLoggedOut, res.Data)

	u, err := users.FindByID(ctx, in.Data.User.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, u.SessionVersion)
}

func TestLoginFlow_Logout_MissingUser(t *testing.T) {
	flow, _ := newLoginFlow(&fakeProvider{})

	res, err := flow.Logout(context.Background(), 999)
	assert.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLoginFlow_Logout_NoUser(t *testing.T) {
	flow, _ := newLoginFlow(&fakeProvider{})

	_, err := flow.Logout(context.Background(), 0)
	assert.ErrorIs(t, err, usecase.ErrNoUser)
}
