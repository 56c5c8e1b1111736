package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/mdps/dashboard-client/internal/apperr"
)

// Invalidation reasons handed to the Authorizer when the gateway tears a
// session down.
const (
	ReasonExpired   = "expired"
	ReasonSuspended = "suspended"
)

// Authorizer supplies bearer credentials for outbound requests and owns the
// recovery path. The gateway reads tokens but never writes them; all
// mutations go through RefreshAccess and Invalidate so there is exactly one
// write path for session state.
type Authorizer interface {
	// AccessToken returns the current access token, or "" when anonymous.
	AccessToken() string
	// RefreshAccess mints a new access token from the stored refresh token.
	RefreshAccess(ctx context.Context) (string, error)
	// Invalidate clears the session. reason is ReasonExpired or ReasonSuspended.
	Invalidate(reason string)
}

// Gateway is the single outbound pipeline for authenticated API calls. It
// attaches the bearer token, detects auth failure, attempts exactly one
// silent recovery and otherwise falls back to clearing the session.
type Gateway struct {
	client *Client
	auth   Authorizer
	log    zerolog.Logger
}

// NewGateway creates the authenticated request pipeline
func NewGateway(client *Client, auth Authorizer, log zerolog.Logger) *Gateway {
	return &Gateway{client: client, auth: auth, log: log}
}

// call describes one API invocation. authEndpoint marks the endpoints where
// suspension markers in the response are honored.
type call struct {
	method       string
	path         string
	query        url.Values
	body         any
	authEndpoint bool
}

// suspendedBody matches both a top-level user profile and an envelope that
// nests the user, covering the two shapes auth endpoints respond with.
type suspendedBody struct {
	Status string `json:"status"`
	User   *struct {
		Status string `json:"status"`
	} `json:"user"`
}

func bodySignalsSuspension(body []byte) bool {
	var sb suspendedBody
	if err := json.Unmarshal(body, &sb); err != nil {
		return false
	}
	if sb.Status == "Suspended" {
		return true
	}
	return sb.User != nil && sb.User.Status == "Suspended"
}

// do runs one call through the pipeline. The loop index is the explicit
// retry counter: a call is replayed at most once, and only after a
// successful token refresh, so a permanently invalid refresh token can never
// cause a retry storm.
func (g *Gateway) do(ctx context.Context, c call, out any) error {
	for attempt := 0; attempt <= 1; attempt++ {
		req, err := g.client.newJSONRequest(ctx, c.method, c.path, c.body)
		if err != nil {
			return err
		}
		if len(c.query) > 0 {
			req.URL.RawQuery = c.query.Encode()
		}
		// The token is re-read on every attempt, so a replay after refresh
		// is guaranteed to carry the fresh token.
		if token := g.auth.AccessToken(); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}

		resp, err := g.client.retryableRequest(req)
		if err != nil {
			return apperr.NetworkError(err)
		}
		body, err := readLimitedResponse(resp.Body, MaxResponseSize)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			if attempt == 0 {
				if _, err := g.auth.RefreshAccess(ctx); err == nil {
					g.log.Debug().Str("path", c.path).Msg("access token refreshed, replaying request")
					continue
				}
			}
			g.auth.Invalidate(ReasonExpired)
			return apperr.ErrSessionExpired

		case resp.StatusCode == http.StatusForbidden && c.authEndpoint && suspensionIndicated(body):
			// Suspension is not recoverable by refreshing.
			g.auth.Invalidate(ReasonSuspended)
			return apperr.ErrAccountSuspended

		case resp.StatusCode >= http.StatusBadRequest:
			return apperr.ServerError(resp.StatusCode, string(body))
		}

		if c.authEndpoint && bodySignalsSuspension(body) {
			// Transport-level success still fails when the account is
			// suspended.
			g.auth.Invalidate(ReasonSuspended)
			return apperr.ErrAccountSuspended
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	// Unreachable: every branch above returns or continues at most once.
	return apperr.ErrSessionExpired
}

// CurrentUser fetches the authenticated user's profile
func (g *Gateway) CurrentUser(ctx context.Context) (*UserPayload, error) {
	var user UserPayload
	err := g.do(ctx, call{
		method:       http.MethodGet,
		path:         "/api/user/me/",
		authEndpoint: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ChatQuery filters chat listings by participant
type ChatQuery struct {
	UserID      int64
	SupportChat bool
	Filtered    bool
}

// ListChats returns the chats visible to the current user
func (g *Gateway) ListChats(ctx context.Context, q ChatQuery) ([]ChatPayload, error) {
	values := url.Values{}
	if q.Filtered {
		values.Set("user_id", fmt.Sprintf("%d", q.UserID))
		values.Set("support_chat", fmt.Sprintf("%t", q.SupportChat))
	}

	var chats []ChatPayload
	err := g.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/chats/",
		query:  values,
	}, &chats)
	if err != nil {
		return nil, err
	}
	return chats, nil
}

// CreateChat opens a new conversation thread with a participant
func (g *Gateway) CreateChat(ctx context.Context, userID int64, supportChat bool) (*ChatPayload, error) {
	var chat ChatPayload
	err := g.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/chats/",
		body:   CreateChatRequest{User: userID, SupportChat: supportChat},
	}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ChatMessages fetches the authoritative message set for one chat
func (g *Gateway) ChatMessages(ctx context.Context, chatID int64) ([]MessagePayload, error) {
	var messages []MessagePayload
	err := g.do(ctx, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/chats/%d/messages/", chatID),
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage persists a message and returns the server-assigned record
func (g *Gateway) PostMessage(ctx context.Context, req CreateMessageRequest) (*MessagePayload, error) {
	var msg MessagePayload
	err := g.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/messages/",
		body:   req,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdatePresence publishes a user's online state and returns the stored record
func (g *Gateway) UpdatePresence(ctx context.Context, userID int64, online bool) (*PresencePayload, error) {
	var presence PresencePayload
	err := g.do(ctx, call{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/users/%d/presence/", userID),
		body:   PresenceRequest{IsOnline: online},
	}, &presence)
	if err != nil {
		return nil, err
	}
	return &presence, nil
}
