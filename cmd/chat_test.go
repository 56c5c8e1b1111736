package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mdps/dashboard-client/internal/api"
	"github.com/mdps/dashboard-client/internal/keychain"
)

// resetChatFlags clears the persistent flag variables between tests
func resetChatFlags(t *testing.T) {
	t.Helper()
	chatUserID = 0
	chatSupport = false
	chatMessage = ""
	t.Cleanup(func() {
		chatUserID = 0
		chatSupport = false
		chatMessage = ""
	})
}

func TestChatSendCommand(t *testing.T) {
	resetChatFlags(t)

	var nextID int64 = 100
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/user/me/":
			_ = json.NewEncoder(w).Encode(api.UserPayload{ID: 7, Username: "tester", Status: "Active"})

		case strings.HasSuffix(r.URL.Path, "/presence/"):
			_ = json.NewEncoder(w).Encode(api.PresencePayload{ID: 7, IsOnline: true, LastSeen: time.Now().UTC()})

		case r.URL.Path == "/api/chats/" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]api.ChatPayload{})

		case r.URL.Path == "/api/chats/" && r.Method == http.MethodPost:
			var req api.CreateChatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.User != 9 {
				t.Errorf("expected chat with user 9, got %d", req.User)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(api.ChatPayload{ID: 42, User: api.UserPayload{ID: req.User}})

		case strings.HasPrefix(r.URL.Path, "/api/chats/") && strings.HasSuffix(r.URL.Path, "/messages/"):
			_ = json.NewEncoder(w).Encode([]api.MessagePayload{})

		case r.URL.Path == "/api/messages/":
			var req api.CreateMessageRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Chat != 42 || req.Content != "hello there" {
				t.Errorf("unexpected message request: %+v", req)
			}
			nextID++
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(api.MessagePayload{
				ID:        nextID,
				Content:   req.Content,
				ChatID:    req.Chat,
				Sender:    api.MessageSenderPayload{ID: req.Sender},
				CreatedAt: time.Now().UTC(),
				ClientRef: req.ClientRef,
			})

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	setupTestEnv(t, server.URL)
	mockKC := useMockKeychain(t)
	if err := keychain.SaveTokens(mockKC, "stored-access", "stored-refresh"); err != nil {
		t.Fatalf("failed to seed keychain: %v", err)
	}

	outStr, err := runCommand(chatCmd, "chat", "send", "--user", "9", "--message", "hello there")
	if err != nil {
		t.Fatalf("chat send failed: %v", err)
	}
	if !strings.Contains(outStr, "Sent message 101") {
		t.Errorf("expected send confirmation, got: %s", outStr)
	}
}

func TestChatSendCommand_MissingFlags(t *testing.T) {
	setupTestEnv(t, "http://localhost:8000")
	useMockKeychain(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing message", []string{"chat", "send", "--user", "9"}, "--message is required"},
		{"not logged in", []string{"chat", "send", "--message", "hi"}, "not authenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetChatFlags(t)
			_, err := runCommand(chatCmd, tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in error, got: %v", tt.want, err)
			}
		})
	}
}
