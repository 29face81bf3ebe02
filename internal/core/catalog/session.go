package catalog

import (
	"context"
	"encoding/json"
	"fmt"
)

// Login exchanges credentials for a session token. The token is attached to
// every later request until Logout.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	data, err := c.do(ctx, "login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return Session{}, err
	}
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return Session{}, fmt.Errorf("login: decode token: %w", err)
	}
	if token == "" {
		return Session{}, &AuthenticationError{Code: CodeAuthInvalid, Message: "empty session token"}
	}

	s := Session{Token: token, IssuedAt: c.now()}
	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()

	c.log.InfoContext(ctx, "catalog session opened", "user", username)
	return s, nil
}

// Logout ends the session. The local session is discarded even when the
// catalog call fails.
func (c *Client) Logout(ctx context.Context) error {
	if _, ok := c.Session(); !ok {
		return &AuthenticationError{Code: CodeNoSession, Message: "not logged in"}
	}
	_, err := c.do(ctx, "logout", nil)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.http.CloseIdleConnections()

	if err != nil {
		c.log.ErrorContext(ctx, "catalog logout failed", "err", err)
		return fmt.Errorf("logout: %w", err)
	}
	c.log.InfoContext(ctx, "catalog session closed")
	return nil
}
