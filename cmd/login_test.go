package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/mdps/dashboard-client/internal/api"
	"github.com/mdps/dashboard-client/internal/keychain"
)

// setupTestEnv points the command stack at a temp config dir and a test server
func setupTestEnv(t *testing.T, serverURL string) {
	t.Helper()
	t.Setenv("MDPS_DASH_CONFIG_DIR", t.TempDir())
	t.Setenv("MDPS_DASH_SERVER_URL", serverURL)
}

// useMockKeychain swaps the keychain factory for the duration of a test
func useMockKeychain(t *testing.T) *keychain.MockKeychain {
	t.Helper()
	mockKC := keychain.NewMockKeychain()
	origFactory := keychainFactory
	keychainFactory = func() keychain.Keychain {
		return mockKC
	}
	t.Cleanup(func() {
		keychainFactory = origFactory
	})
	return mockKC
}

// runCommand executes a subcommand on a fresh root and captures its output
func runCommand(sub *cobra.Command, args ...string) (string, error) {
	cmd := &cobra.Command{Use: "mdps-dash"}
	cmd.AddCommand(sub)

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return output.String(), err
}

func TestLoginCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/":
			var req api.TokenRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Email != "test@example.com" || req.Password != "password123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(api.TokenResponse{Access: "test-access", Refresh: "test-refresh"})
		case "/api/user/me/":
			_ = json.NewEncoder(w).Encode(api.UserPayload{
				ID:       1,
				Username: "tester",
				Email:    "test@example.com",
				IsStaff:  true,
				Status:   "Active",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	setupTestEnv(t, server.URL)
	mockKC := useMockKeychain(t)

	outStr, err := runCommand(loginCmd, "login", "--email", "test@example.com", "--password", "password123")
	if err != nil {
		t.Fatalf("login command failed: %v", err)
	}

	if !strings.Contains(outStr, "Login successful") {
		t.Errorf("expected success message, got: %s", outStr)
	}

	// Verify token pair stored
	access, refresh, err := keychain.LoadTokens(mockKC)
	if err != nil {
		t.Fatalf("tokens not stored: %v", err)
	}
	if access != "test-access" || refresh != "test-refresh" {
		t.Errorf("expected stored token pair, got %q / %q", access, refresh)
	}
}

func TestLoginCommand_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer server.Close()

	setupTestEnv(t, server.URL)
	useMockKeychain(t)

	_, err := runCommand(loginCmd, "login", "--email", "wrong@example.com", "--password", "wrongpass")
	if err == nil {
		t.Fatal("expected error for invalid credentials, got nil")
	}
	if !strings.Contains(err.Error(), "login failed") {
		t.Errorf("expected 'login failed' in error, got: %v", err)
	}
}

func TestLoginCommand_SuspendedAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/":
			_ = json.NewEncoder(w).Encode(api.TokenResponse{Access: "test-access", Refresh: "test-refresh"})
		case "/api/user/me/":
			_ = json.NewEncoder(w).Encode(api.UserPayload{ID: 1, Username: "tester", Status: "Suspended"})
		}
	}))
	defer server.Close()

	setupTestEnv(t, server.URL)
	mockKC := useMockKeychain(t)

	_, err := runCommand(loginCmd, "login", "--email", "test@example.com", "--password", "password123")
	if err == nil {
		t.Fatal("expected error for suspended account, got nil")
	}
	if !strings.Contains(err.Error(), "suspended") {
		t.Errorf("expected suspension message, got: %v", err)
	}

	// A suspended login must leave no credentials behind
	access, refresh, _ := keychain.LoadTokens(mockKC)
	if access != "" || refresh != "" {
		t.Errorf("expected no stored tokens, got %q / %q", access, refresh)
	}
}
