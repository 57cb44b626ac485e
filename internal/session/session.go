// Package session holds the explicit client state shared by the storefront
// components: the bearer token, the signed-in user snapshot and the change
// bus. Both token and user are persisted in the local mirror so a restarted
// process resumes the same session.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/golang-jwt/jwt/v5"
)

type Session struct {
	mirror *mirror.Mirror
	bus    *Bus

	mu sync.RWMutex
}

func New(m *mirror.Mirror, bus *Bus) *Session {
	if bus == nil {
		bus = NewBus()
	}
	return &Session{mirror: m, bus: bus}
}

func (s *Session) Bus() *Bus {
	return s.bus
}

// Token returns the stored bearer token, or "".
func (s *Session) Token(ctx context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mirror.Get(ctx, s.mirror, mirror.KeyToken, "")
}

func (s *Session) Authenticated(ctx context.Context) bool {
	return s.Token(ctx) != ""
}

// User returns the stored user snapshot, or nil when signed out.
func (s *Session) User(ctx context.Context) *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mirror.Get[*domain.User](ctx, s.mirror, mirror.KeyUser, nil)
}

// Role reads the role from the user snapshot and falls back to the role
// claim of the token. The token signature is not verified; the role only
// drives what the storefront offers, the API enforces it.
func (s *Session) Role(ctx context.Context) string {
	if u := s.User(ctx); u != nil && u.Role != "" {
		return strings.ToUpper(u.Role)
	}
	return roleFromToken(s.Token(ctx))
}

// SignIn stores the token and user snapshot and announces the change.
func (s *Session) SignIn(ctx context.Context, token string, user *domain.User) {
	s.mu.Lock()
	if token != "" {
		s.mirror.Set(ctx, mirror.KeyToken, token)
	}
	if user != nil {
		s.mirror.Set(ctx, mirror.KeyUser, user)
	}
	s.mu.Unlock()

	s.bus.Publish(ctx, TopicUserChanged)
}

// UpdateUser replaces the stored snapshot without touching the token.
func (s *Session) UpdateUser(ctx context.Context, user domain.User) {
	s.mu.Lock()
	s.mirror.Set(ctx, mirror.KeyUser, user)
	s.mu.Unlock()

	s.bus.Publish(ctx, TopicUserChanged)
}

// SignOut forgets token and user. The anonymous cart is left alone.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.mirror.Remove(ctx, mirror.KeyToken)
	s.mirror.Remove(ctx, mirror.KeyUser)
	s.mu.Unlock()

	s.bus.Publish(ctx, TopicUserChanged)
}

func roleFromToken(token string) string {
	if token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	for _, key := range []string{"role", "rol"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return strings.ToUpper(v)
		}
	}
	if roles, ok := claims["roles"].([]any); ok && len(roles) > 0 {
		if v, ok := roles[0].(string); ok {
			return strings.ToUpper(strings.TrimPrefix(v, "ROLE_"))
		}
	}
	return ""
}
