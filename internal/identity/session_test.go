package identity

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository/memory"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) (*TokenSession, *memory.UserRepository) {
	t.Helper()
	users := memory.NewUserRepository()
	s, err := NewTokenSession(users, "test-secret", time.Hour, nil)
	require.NoError(t, err)
	return s, users
}

func TestNewTokenSession_RequiresSecret(t *testing.T) {
	_, err := NewTokenSession(memory.NewUserRepository(), "", time.Hour, nil)
	assert.Error(t, err)
}

func TestSignInAnonymous(t *testing.T) {
	ctx := context.Background()
	s, users := newSession(t)

	var states []AuthState
	unsubscribe := s.OnAuthStateChange(func(st AuthState) { states = append(states, st) })
	defer unsubscribe()

	in, err := s.SignInAnonymous(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, in.UserID)
	assert.True(t, in.Anonymous)
	assert.NotEmpty(t, in.Token)

	u, err := users.GetByID(ctx, in.UserID)
	require.NoError(t, err)
	assert.True(t, u.Anonymous)

	claims, err := s.Verify(in.Token)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, claims.UserID)
	assert.Equal(t, []AuthState{{UserID: in.UserID, SignedIn: true}}, states)
}

func TestSignInWithToken_ReissuesForSameUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)
	first, err := s.SignInAnonymous(ctx)
	require.NoError(t, err)

	second, err := s.SignInWithToken(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestSignInWithToken_Rejects(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)

	_, err := s.SignInWithToken(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrAuth)

	other, err := NewTokenSession(memory.NewUserRepository(), "other-secret", time.Hour, nil)
	require.NoError(t, err)
	foreign, err := other.SignInAnonymous(ctx)
	require.NoError(t, err)
	_, err = s.SignInWithToken(ctx, foreign.Token)
	assert.ErrorIs(t, err, domain.ErrAuth, "token signed with another secret")

	// Valid signature but the user does not exist in this session's store.
	orphan, err := s.issue(&domain.User{ID: "ghost"})
	require.NoError(t, err)
	_, err = s.SignInWithToken(ctx, orphan.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestVerify_ExpiredToken(t *testing.T) {
	s, _ := newSession(t)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	in, err := s.issue(&domain.User{ID: "u1"})
	require.NoError(t, err)

	_, err = s.Verify(in.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	s, _ := newSession(t)
	claims := &Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{
		ID: "x", Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestSignOut_RevokesAndNotifies(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t)
	in, err := s.SignInAnonymous(ctx)
	require.NoError(t, err)

	var last AuthState
	unsubscribe := s.OnAuthStateChange(func(st AuthState) { last = st })
	require.NoError(t, s.SignOut(ctx, in.Token))
	assert.Equal(t, AuthState{UserID: in.UserID, SignedIn: false}, last)

	_, err = s.Verify(in.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.ErrorIs(t, s.SignOut(ctx, in.Token), domain.ErrAuth)

	unsubscribe()
	unsubscribe()
	other, err := s.SignInAnonymous(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, other.UserID, last.UserID, "removed listeners are not called")
}

type failingUsers struct{ *memory.UserRepository }

func (failingUsers) Create(context.Context, *domain.User) (string, error) {
	return "", errors.New("db down")
}

func TestSignInAnonymous_StoreFailure(t *testing.T) {
	s, err := NewTokenSession(failingUsers{memory.NewUserRepository()}, "secret", time.Hour, nil)
	require.NoError(t, err)
	_, err = s.SignInAnonymous(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuth)
}
