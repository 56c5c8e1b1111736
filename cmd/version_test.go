package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mdps/dashboard-client/internal/api"
)

func TestVersionCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected /health, got %s", r.URL.Path)
			return
		}
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Service: "dashboard", Version: "1.4.0"})
	}))
	defer server.Close()

	setupTestEnv(t, server.URL)
	useMockKeychain(t)

	outStr, err := runCommand(versionCmd, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	if !strings.Contains(outStr, "mdps-dash version "+version) {
		t.Errorf("expected client version in output, got: %s", outStr)
	}
	if !strings.Contains(outStr, "server version 1.4.0") {
		t.Errorf("expected server version in output, got: %s", outStr)
	}
}

func TestVersionCommand_ServerUnreachable(t *testing.T) {
	setupTestEnv(t, "http://127.0.0.1:1")
	useMockKeychain(t)

	outStr, err := runCommand(versionCmd, "version")
	if err != nil {
		t.Fatalf("version command should not fail offline: %v", err)
	}
	if !strings.Contains(outStr, "mdps-dash version "+version) {
		t.Errorf("expected client version in output, got: %s", outStr)
	}
	if strings.Contains(outStr, "server version") {
		t.Errorf("expected no server version offline, got: %s", outStr)
	}
}
