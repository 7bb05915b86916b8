package natsclient

import (
	"fmt"
	"log/slog"
	"time"
)

// Option configures a Client at construction time.
type Option func(*Client) error

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithName sets the client connection name reported to the server.
func WithName(name string) Option {
	return func(c *Client) error {
		c.name = name
		return nil
	}
}

// WithTimeout sets the initial connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithReconnect configures automatic reconnection. maxReconnects of -1
// retries forever.
func WithReconnect(maxReconnects int, wait time.Duration) Option {
	return func(c *Client) error {
		if wait <= 0 {
			return fmt.Errorf("reconnect wait must be positive, got %v", wait)
		}
		c.maxReconnects = maxReconnects
		c.reconnectWait = wait
		return nil
	}
}

// WithUserInfo sets username/password authentication.
func WithUserInfo(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}
