// Package account is a thin HTTP client for the account REST API. It is used
// once at startup to check that the configured token is accepted before the
// gateway client starts reconnecting with it.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIURL is the public REST API, version 9.
const DefaultAPIURL = "https://discord.com/api/v9"

// ErrInvalidToken is returned when the API rejects the token.
var ErrInvalidToken = errors.New("token rejected by API")

// StatusError is an unexpected non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api error %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("api error %d", e.Code)
}

// User is the subset of the current-user resource we report.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name,omitempty"`
}

// DisplayName is the name shown in startup logs.
func (u User) DisplayName() string {
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}

// Logger is a minimal logging interface.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
}

// RetryPolicy configures basic retry behavior.
type RetryPolicy struct {
	Retries    int           // total attempts = Retries + 1
	MinDelay   time.Duration // base backoff (e.g., 200ms)
	MaxDelay   time.Duration // cap (e.g., 2s)
	RetryOn429 bool          // also retry on 429
}

func (p RetryPolicy) normalized() RetryPolicy {
	q := p
	if q.Retries < 0 {
		q.Retries = 0
	}
	if q.MinDelay <= 0 {
		q.MinDelay = 200 * time.Millisecond
	}
	if q.MaxDelay <= 0 {
		q.MaxDelay = 2 * time.Second
	}
	if q.MaxDelay < q.MinDelay {
		q.MaxDelay = q.MinDelay
	}
	return q
}

// Client calls the account API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      Logger
	retryPolicy RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }
func WithLogger(l Logger) Option           { return func(c *Client) { c.logger = l } }
func WithRetry(p RetryPolicy) Option       { return func(c *Client) { c.retryPolicy = p } }

// New creates a Client with a 5s request timeout.
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAPIURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate fetches the user that owns token. A 401 yields ErrInvalidToken.
func (c *Client) Validate(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/users/@me", map[string]string{
		"Authorization": token,
		"Content-Type":  "application/json",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func readAPIError(r io.Reader, status int) error {
	if status == http.StatusUnauthorized {
		return ErrInvalidToken
	}
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return &StatusError{Code: status, Body: strings.TrimSpace(string(b))}
}

// do executes an HTTP request with retries according to the policy.
func (c *Client) do(ctx context.Context, method, urlStr string, headers map[string]string) (*http.Response, error) {
	attempt := func() (*http.Response, bool, error) {
		req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
		if err != nil {
			return nil, false, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, true, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, false, nil
		}
		retryable := resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusGatewayTimeout
		if c.retryPolicy.RetryOn429 && resp.StatusCode == http.StatusTooManyRequests {
			retryable = true
		}
		defer resp.Body.Close()
		return nil, retryable, readAPIError(resp.Body, resp.StatusCode)
	}

	pol := c.retryPolicy.normalized()
	for i := 0; ; i++ {
		resp, retryable, err := attempt()
		if err == nil {
			return resp, nil
		}
		if !retryable || i == pol.Retries || ctx.Err() != nil {
			return nil, err
		}
		delay := backoff(i, pol.MinDelay, pol.MaxDelay)
		if c.logger != nil {
			c.logger.Info("Retrying account request", "in", delay.String(), "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func backoff(attempt int, minDelay, maxDelay time.Duration) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	base := float64(minDelay) * float64(int(1)<<attempt)
	if base > float64(maxDelay) {
		base = float64(maxDelay)
	}
	jitter := 0.2 + rand.Float64()*0.6 // 0.2..0.8
	return time.Duration(base * jitter)
}
