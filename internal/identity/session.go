// Package identity signs users in (anonymously or with a previously issued
// token) and tells listeners when a user signs in or out.
package identity

import (
	"alcyxob/workym/internal/domain"
	"alcyxob/workym/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const issuer = "workym"

// AuthState is delivered to listeners on every sign-in and sign-out.
type AuthState struct {
	UserID   string
	SignedIn bool
}

// SignIn is the result of a successful sign-in.
type SignIn struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Anonymous bool      `json:"anonymous"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims is the JWT payload issued by the session.
type Claims struct {
	UserID    string `json:"uid"`
	Anonymous bool   `json:"anon"`
	jwt.RegisteredClaims
}

// Session is the identity collaborator consumed by the rest of the app.
type Session interface {
	SignInAnonymous(ctx context.Context) (*SignIn, error)
	SignInWithToken(ctx context.Context, token string) (*SignIn, error)
	OnAuthStateChange(fn func(AuthState)) (unsubscribe func())
	SignOut(ctx context.Context, token string) error
	Verify(token string) (*Claims, error)
}

// --- Service Implementation ---

// TokenSession implements Session with HS256 tokens and a user repository.
type TokenSession struct {
	users      repository.UserRepository
	secret     []byte
	expiration time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	listeners map[int]func(AuthState)
	nextID    int
	revoked   map[string]time.Time // token ID -> expiry
}

var _ Session = (*TokenSession)(nil)

// NewTokenSession creates a session. An empty secret is a configuration error.
func NewTokenSession(users repository.UserRepository, secret string, expiration time.Duration, logger *zap.Logger) (*TokenSession, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	if expiration <= 0 {
		expiration = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSession{
		users:      users,
		secret:     []byte(secret),
		expiration: expiration,
		logger:     logger,
		now:        time.Now,
		listeners:  make(map[int]func(AuthState)),
		revoked:    make(map[string]time.Time),
	}, nil
}

// SignInAnonymous creates a new anonymous user and issues its token.
func (s *TokenSession) SignInAnonymous(ctx context.Context) (*SignIn, error) {
	user := &domain.User{Anonymous: true}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: create anonymous user: %v", domain.ErrAuth, err)
	}
	in, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("anonymous sign-in", zap.String("uid", user.ID))
	s.notify(AuthState{UserID: user.ID, SignedIn: true})
	return in, nil
}

// SignInWithToken exchanges a valid token for a fresh one.
func (s *TokenSession) SignInWithToken(ctx context.Context, token string) (*SignIn, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown user", domain.ErrAuth)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	if err := s.users.Touch(ctx, user.ID); err != nil {
		s.logger.Warn("touch user", zap.String("uid", user.ID), zap.Error(err))
	}
	in, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("token sign-in", zap.String("uid", user.ID))
	s.notify(AuthState{UserID: user.ID, SignedIn: true})
	return in, nil
}

// SignOut revokes the token and notifies listeners that its user left.
func (s *TokenSession) SignOut(ctx context.Context, token string) error {
	claims, err := s.Verify(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()

	s.logger.Info("sign-out", zap.String("uid", claims.UserID))
	s.notify(AuthState{UserID: claims.UserID, SignedIn: false})
	return nil
}

// Verify parses and validates a token issued by this session.
func (s *TokenSession) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", domain.ErrAuth)
		}
		return nil, fmt.Errorf("%w: invalid token: %v", domain.ErrAuth, err)
	}
	if !parsed.Valid || claims.UserID == "" || claims.ID == "" || claims.Issuer != issuer {
		return nil, fmt.Errorf("%w: invalid token or missing claims", domain.ErrAuth)
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("%w: token was revoked", domain.ErrAuth)
	}
	return claims, nil
}

// OnAuthStateChange registers fn and returns a function removing it.
func (s *TokenSession) OnAuthStateChange(fn func(AuthState)) func() {
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

func (s *TokenSession) notify(state AuthState) {
	s.mu.Lock()
	fns := make([]func(AuthState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// issue creates a signed token for user.
func (s *TokenSession) issue(user *domain.User) (*SignIn, error) {
	now := s.now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		UserID:    user.ID,
		Anonymous: user.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: sign token: %v", domain.ErrAuth, err)
	}
	return &SignIn{UserID: user.ID, Token: signed, Anonymous: user.Anonymous, ExpiresAt: expiresAt}, nil
}
