package api

import (
	"context"
	"net/http"
)

// Login obtains a fresh token pair from username/password credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	var pair TokenPair
	status, body, err := c.doOnce(ctx, http.MethodPost, "api/v1/auth/login", LoginRequest{Username: username, Password: password}, "")
	if err != nil {
		return nil, err
	}
	if err := decodeReply(status, body, &pair); err != nil {
		return nil, err
	}
	c.storeTokens(pair.Access, pair.Refresh)
	return &pair, nil
}

// Me returns the authenticated account, useful as a cheap token check.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "api/v1/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the refresh token server-side and drops both tokens.
func (c *Client) Logout(ctx context.Context) error {
	_, refreshTok := c.tokens()
	err := c.do(ctx, http.MethodPost, "api/v1/auth/logout", map[string]string{"refresh": refreshTok}, nil)
	c.clearTokens()
	return err
}
