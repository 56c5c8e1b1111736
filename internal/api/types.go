package api

import "time"

// Wire types for the dashboard REST API. Field names follow the backend's
// snake_case JSON.

// TokenRequest is the login request body for POST /api/token/
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the minted token pair. Auth endpoints may also echo
// the user so the account status can be checked before the session is used.
type TokenResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *UserPayload `json:"user,omitempty"`
}

// RefreshRequest is the body for POST /api/token/refresh/
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries a freshly minted access token
type RefreshResponse struct {
	Access string `json:"access"`
}

// UserPayload is the backend's user profile representation
type UserPayload struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsSuperuser bool   `json:"is_superuser"`
	IsStaff     bool   `json:"is_staff"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Status      string `json:"status"`
}

// ChatPayload is one conversation thread as returned by /api/chats/
type ChatPayload struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	User        UserPayload      `json:"user"`
	SupportChat bool             `json:"support_chat"`
	Messages    []MessagePayload `json:"messages"`
	CreatedAt   time.Time        `json:"created_at"`
}

// MessageSenderPayload is the abbreviated sender attached to each message
type MessageSenderPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// MessagePayload is one chat message
type MessagePayload struct {
	ID        int64                `json:"id"`
	Content   string               `json:"content"`
	ChatID    int64                `json:"chat_id"`
	Sender    MessageSenderPayload `json:"sender"`
	CreatedAt time.Time            `json:"created_at"`
	ReadAt    *time.Time           `json:"read_at"`
	ClientRef string               `json:"client_ref,omitempty"`
}

// CreateChatRequest is the body for POST /api/chats/
type CreateChatRequest struct {
	User        int64 `json:"user"`
	SupportChat bool  `json:"support_chat"`
}

// CreateMessageRequest is the body for POST /api/messages/
type CreateMessageRequest struct {
	Content   string `json:"content"`
	Chat      int64  `json:"chat"`
	Sender    int64  `json:"sender"`
	ClientRef string `json:"client_ref,omitempty"`
}

// PresenceRequest is the body for POST /api/users/{id}/presence/
type PresenceRequest struct {
	IsOnline bool `json:"is_online"`
}

// PresencePayload is the per-user presence record; last write wins
type PresencePayload struct {
	ID       int64     `json:"id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// HealthResponse represents the server health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// errorBody is the backend's error envelope
type errorBody struct {
	Error string `json:"error"`
}
