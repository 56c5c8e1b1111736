package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{
			name: "direct app error",
			err:  ErrInvalidCredentials,
			want: CodeInvalidCredentials,
		},
		{
			name: "wrapped app error",
			err:  fmt.Errorf("login failed: %w", ErrAccountSuspended),
			want: CodeAccountSuspended,
		},
		{
			name: "wrap constructor",
			err:  Wrap(CodeRefreshFailed, "token refresh rejected", errors.New("status 401")),
			want: CodeRefreshFailed,
		},
		{
			name: "foreign error",
			err:  errors.New("connection refused"),
			want: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("expected code %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := Wrap(CodeAccountSuspended, "suspension detected on /user/me/", nil)
	if !errors.Is(wrapped, ErrAccountSuspended) {
		t.Error("expected wrapped suspension error to match the sentinel")
	}

	if errors.Is(ErrSessionExpired, ErrAccountSuspended) {
		t.Error("expected different codes not to match")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NetworkError(cause)

	if got := err.Error(); got != "request failed: dial tcp: connection refused" {
		t.Errorf("unexpected error string: %s", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
}
