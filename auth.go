package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// Login authenticates with username and password. The caller must confirm
// the session with IsLoggedIn.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.Login(username, password); err != nil {
		return fmt.Errorf("%w: login %s: %v", ErrAuthentication, username, err)
	}
	return nil
}

// IsLoggedIn reports whether the platform accepts the current session.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return c.api.IsLoggedIn()
}

// Logout ends the platform session.
func (c *Client) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.Logout(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// SaveSession writes the session cookies to a JSON file readable only by the
// owner.
func (c *Client) SaveSession(path string) error {
	data, err := json.Marshal(c.api.GetCookies())
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: write session %s: %v", ErrPersistence, path, err)
	}
	return nil
}

// LoadSession restores cookies saved by SaveSession.
func (c *Client) LoadSession(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("unmarshal cookies: %w", err)
	}
	c.api.SetCookies(cookies)
	return nil
}
