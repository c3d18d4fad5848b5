// Package auth exchanges a SolidData management key for a short-lived bearer
// token. The token is held in memory for the duration of a run and never
// persisted or logged.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized is returned when the auth endpoint rejects the management key.
var ErrUnauthorized = errors.New("auth: management key rejected")

// defaultTimeout bounds the whole exchange round trip.
const defaultTimeout = 30 * time.Second

// Client performs the management-key exchange against a SolidData auth endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
	key      string
}

// Option is a functional option for Client.
type Option func(*Client)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithHTTPClient replaces the underlying resty client. Intended for tests.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) {
		c.http = rc
	}
}

// NewClient creates a Client for the given auth endpoint and management key.
// The key is validated lazily in [Client.Exchange] so that commands which never
// authenticate (e.g. `solidquery env`) can still construct a client.
func NewClient(endpoint, managementKey string, opts ...Option) *Client {
	c := &Client{
		http:     resty.New().SetTimeout(defaultTimeout),
		endpoint: endpoint,
		key:      managementKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ValidateKey checks the management key locally, without any network traffic.
// It rejects empty keys and common placeholder values copied from .env.example.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("auth: SOLIDDATA_MANAGEMENT_KEY is missing or empty; set it in your .env file (see .env.example)")
	}
	lower := strings.ToLower(key)
	if strings.Contains(lower, "your_management_key") || strings.Contains(lower, "here") {
		return errors.New("auth: SOLIDDATA_MANAGEMENT_KEY looks like a placeholder; replace it in .env with your real SolidData management key")
	}
	return nil
}

// Exchange POSTs {"management_key": key} to the auth endpoint and returns the
// bearer token. It validates the key before any HTTP traffic and accepts,
// liberally, either a raw JSON string or an object carrying a token field
// under a few common names.
func (c *Client) Exchange(ctx context.Context) (string, error) {
	if err := ValidateKey(c.key); err != nil {
		return "", err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"management_key": c.key}).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("auth: exchange request: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: SolidData returned 401 Unauthorized; check that SOLIDDATA_MANAGEMENT_KEY is correct, not expired, and valid for the auth endpoint (e.g. dev vs prod)", ErrUnauthorized)
	}
	if resp.IsError() {
		return "", fmt.Errorf("auth: exchange failed: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	token, err := extractToken(resp.Body())
	if err != nil {
		return "", err
	}
	return token, nil
}

// extractToken pulls a bearer token out of an auth endpoint response body.
// Accepted shapes: a raw JSON string, or an object with "token",
// "access_token", or "accessToken". Any "Bearer " prefix is stripped so
// callers can add the scheme consistently.
func extractToken(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", errors.New("auth: auth endpoint returned an empty response")
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("auth: decode auth response: %w", err)
	}

	var token string
	switch v := raw.(type) {
	case string:
		token = v
	case map[string]any:
		for _, key := range []string{"token", "access_token", "accessToken"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				token = s
				break
			}
		}
		if token == "" {
			return "", errors.New("auth: auth endpoint returned a JSON object but no token or access_token field")
		}
	default:
		return "", fmt.Errorf("auth: unexpected auth response type %T", raw)
	}

	token = strings.TrimSpace(token)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", errors.New("auth: auth endpoint returned an empty token")
	}
	return token, nil
}

// Mask shortens a secret for log output, keeping only the first four runes.
func Mask(secret string) string {
	r := []rune(secret)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:4]) + "…"
}
