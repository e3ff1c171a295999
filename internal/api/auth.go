package api

import (
	"context"
	"net/http"

	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/soyeahso/zeyn/internal/store"
)

// Login authenticates and stores the returned access token.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil,
		domain.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if err := store.SetAccessToken(ctx, c.creds, resp.AccessToken); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and stores the returned access token.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	if err := store.SetAccessToken(ctx, c.creds, resp.AccessToken); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the account behind the stored token.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout forgets the stored token. The backend keeps no session to end.
func (c *Client) Logout(ctx context.Context) error {
	return store.SetAccessToken(ctx, c.creds, "")
}
