package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/mdps/dashboard-client/internal/apperr"
)

// MaxResponseSize caps how much of any response body is read (1MB)
const MaxResponseSize int64 = 1 << 20

// MinServerVersion is the oldest backend this client is known to work with
const MinServerVersion = "v1.2.0"

// ErrResponseTooLarge is returned when a response body exceeds MaxResponseSize
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

const (
	maxAttempts = 3
	retryDelay  = 250 * time.Millisecond
)

// Client handles raw communication with the dashboard backend. It knows
// nothing about sessions; the unauthenticated endpoints live here and
// everything else goes through the Gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new API client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// BaseURL returns the configured server base URL
func (c *Client) BaseURL() string { return c.baseURL }

// newJSONRequest builds a request with an optional JSON body. GetBody is set
// so the body can be replayed on transport retries and auth replays.
func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	return req, nil
}

// retryableRequest sends a request, retrying on transport errors and
// gateway-unavailable statuses. The final response is returned as-is; status
// handling belongs to the caller.
func (c *Client) retryableRequest(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay * time.Duration(attempt))
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("failed to reset request body: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if (resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable) && attempt < maxAttempts-1 {
			_ = resp.Body.Close()
			c.log.Debug().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("retrying request")
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

// readLimitedResponse reads at most maxSize bytes from r
func readLimitedResponse(r io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// Health checks if the server is healthy and logs a warning when the server
// reports a version older than MinServerVersion.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.retryableRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := readLimitedResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if v := canonicalVersion(health.Version); v != "" && semver.Compare(v, MinServerVersion) < 0 {
		c.log.Warn().
			Str("server_version", health.Version).
			Str("min_version", MinServerVersion).
			Msg("server is older than the minimum supported version")
	}

	return &health, nil
}

func canonicalVersion(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// ExchangeToken posts credentials to the token endpoint. A token exchange
// that succeeds at the transport level can still fail here: a suspension
// marker in the body invalidates the exchange.
func (c *Client) ExchangeToken(ctx context.Context, email, password string) (*TokenResponse, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/token/", TokenRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.retryableRequest(req)
	if err != nil {
		return nil, apperr.NetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readLimitedResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return nil, apperr.ErrInvalidCredentials
	case resp.StatusCode == http.StatusForbidden && suspensionIndicated(body):
		return nil, apperr.ErrAccountSuspended
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.ServerError(resp.StatusCode, string(body))
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.User != nil && tok.User.Status == "Suspended" {
		return nil, apperr.ErrAccountSuspended
	}
	if tok.Access == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	return &tok, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token. Any
// rejection is terminal for the session; the caller must fail closed.
func (c *Client) RefreshAccessToken(ctx context.Context, refresh string) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/token/refresh/", RefreshRequest{Refresh: refresh})
	if err != nil {
		return "", err
	}

	resp, err := c.retryableRequest(req)
	if err != nil {
		return "", apperr.NetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readLimitedResponse(resp.Body, MaxResponseSize)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperr.Wrap(apperr.CodeRefreshFailed, "token refresh rejected",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var refreshed RefreshResponse
	if err := json.Unmarshal(body, &refreshed); err != nil {
		return "", fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if refreshed.Access == "" {
		return "", apperr.New(apperr.CodeRefreshFailed, "refresh endpoint returned no access token")
	}

	return refreshed.Access, nil
}

// suspensionIndicated reports whether an error body names a suspension
func suspensionIndicated(body []byte) bool {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(eb.Error), "suspended")
}
