package remote

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	return Call[LoginResponse](ctx, c, http.MethodPost, "/api/v1/auth/login", creds).Unwrap()
}

// Register returns whatever the API answers; the storefront does not use it
// beyond success.
func (c *Client) Register(ctx context.Context, r domain.Registration) (map[string]any, error) {
	return Call[map[string]any](ctx, c, http.MethodPost, "/api/v1/auth/register", r).Unwrap()
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	return Call[domain.User](ctx, c, http.MethodGet, "/api/v1/users/me", nil).Unwrap()
}

// UpdateMe patches the profile with the given partial fields.
func (c *Client) UpdateMe(ctx context.Context, partial map[string]any) (domain.User, error) {
	return Call[domain.User](ctx, c, http.MethodPatch, "/api/v1/users/me", partial).Unwrap()
}

// PurchaseData fetches the shipping data stored for checkout.
func (c *Client) PurchaseData(ctx context.Context) (domain.ShippingData, error) {
	return Call[domain.ShippingData](ctx, c, http.MethodGet, "/api/v1/users/me/datos-compra", nil).Unwrap()
}
