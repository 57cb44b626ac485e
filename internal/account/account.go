// Package account signs users in and out and keeps the checkout prefill in
// step with the stored shipping profile.
package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mirror"
	"github.com/fjod/go_cart/storefront/internal/remote"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// ShippingIncomplete flags a profile that cannot be shipped to yet.
const ShippingIncomplete = "datos_envio_incompletos"

var (
	ErrNoToken            = errors.New("login response carried no token")
	ErrRegistrationFailed = errors.New("No se pudo registrar el usuario")
)

type API interface {
	Login(ctx context.Context, creds remote.Credentials) (remote.LoginResponse, error)
	Register(ctx context.Context, r domain.Registration) (map[string]any, error)
	Me(ctx context.Context) (domain.User, error)
	UpdateMe(ctx context.Context, partial map[string]any) (domain.User, error)
	PurchaseData(ctx context.Context) (domain.ShippingData, error)
}

type Service struct {
	api     API
	session *session.Session
	mirror  *mirror.Mirror
	log     *slog.Logger
}

func NewService(api API, sess *session.Session, m *mirror.Mirror, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{api: api, session: sess, mirror: m, log: log.With("component", "account")}
}

// Login authenticates against the API and stores the session.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, error) {
	resp, err := s.api.Login(ctx, remote.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, ErrNoToken
	}

	s.session.SignIn(ctx, resp.Token, resp.User)
	s.log.InfoContext(ctx, "signed in", "email", email)
	return resp.User, nil
}

func (s *Service) Logout(ctx context.Context) {
	s.session.SignOut(ctx)
}

// Register validates the sign-up form and creates the account. It does not
// sign the user in.
func (s *Service) Register(ctx context.Context, form SignUp) error {
	form.Normalize()
	if err := form.Validate(); err != nil {
		return err
	}
	if _, err := s.api.Register(ctx, form.Registration()); err != nil {
		s.log.WarnContext(ctx, "registration failed", "email", form.Email, "error", err)
		return errors.Join(ErrRegistrationFailed, err)
	}
	return nil
}

// Me refreshes the user snapshot from the API.
func (s *Service) Me(ctx context.Context) (domain.User, error) {
	u, err := s.api.Me(ctx)
	if err != nil {
		return domain.User{}, err
	}
	s.session.UpdateUser(ctx, s.keepRole(ctx, u))
	return u, nil
}

// UpdateMe patches the profile and stores the returned snapshot.
func (s *Service) UpdateMe(ctx context.Context, partial map[string]any) (domain.User, error) {
	u, err := s.api.UpdateMe(ctx, partial)
	if err != nil {
		return domain.User{}, err
	}
	s.session.UpdateUser(ctx, s.keepRole(ctx, u))
	return u, nil
}

// keepRole carries the known role over when a profile response omits it.
func (s *Service) keepRole(ctx context.Context, u domain.User) domain.User {
	if u.Role == "" {
		if prev := s.session.User(ctx); prev != nil {
			u.Role = prev.Role
		}
	}
	return u
}

// ProfileStatus reports the checkout prefill and whether shipping is
// possible with it.
type ProfileStatus struct {
	Prefill *domain.ShippingData `json:"prefill,omitempty"`
	Source  domain.Source        `json:"source"`
	Issue   string               `json:"issue,omitempty"`
}

// SyncPrefill refreshes the checkout prefill. Signed-in users get the
// stored purchase data; a failed fetch blocks shipping until the profile
// is completed. Without a session the prefill is derived from the user
// snapshot and nothing is blocked.
func (s *Service) SyncPrefill(ctx context.Context) ProfileStatus {
	if s.session.Authenticated(ctx) {
		data, err := s.api.PurchaseData(ctx)
		if err == nil {
			s.mirror.Set(ctx, mirror.KeyPrefill, data)
			st := ProfileStatus{Prefill: &data, Source: domain.SourceRemote}
			if !data.Complete() {
				st.Issue = ShippingIncomplete
			}
			return st
		}
		s.log.WarnContext(ctx, "purchase data unavailable", "error", err)
		st := s.localPrefill(ctx)
		st.Issue = ShippingIncomplete
		return st
	}
	return s.localPrefill(ctx)
}

func (s *Service) localPrefill(ctx context.Context) ProfileStatus {
	st := ProfileStatus{Source: domain.SourceLocal}
	if u := s.session.User(ctx); u != nil {
		if p := u.Prefill(); p != nil {
			s.mirror.Set(ctx, mirror.KeyPrefill, p)
			st.Prefill = p
			return st
		}
	}
	st.Prefill = mirror.Get[*domain.ShippingData](ctx, s.mirror, mirror.KeyPrefill, nil)
	return st
}
