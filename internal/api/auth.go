package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/validate"
)

// Login exchanges credentials for an access token and profile.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	if fields := validate.Struct(&req); fields != nil {
		return nil, fmt.Errorf("invalid credentials payload: %v", fields)
	}
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login succeeded but no access token returned")
	}
	return &resp, nil
}

// Register creates a portal account. The caller logs in separately afterwards.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) error {
	if fields := validate.Struct(&req); fields != nil {
		return fmt.Errorf("invalid registration payload: %v", fields)
	}
	return c.do(ctx, http.MethodPost, "/api/auth/register", req, nil)
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
