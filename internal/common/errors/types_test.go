package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	cause := stderrors.New("underlying")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
	}{
		{"signature", SignatureError("checksum mismatch"), ErrTypeSignature},
		{"malformed", MalformedPayloadError("bad json", cause), ErrTypeMalformed},
		{"unsupported", UnsupportedEventError("networkStatus"), ErrTypeUnsupported},
		{"auth", AuthError("token rejected", cause), ErrTypeAuth},
		{"transient", TransientError("upstream 503", cause), ErrTypeTransient},
		{"permanent", PermanentError("device not found"), ErrTypePermanent},
		{"config", ConfigError("missing secret"), ErrTypeConfig},
		{"timeout", TimeoutError("api call"), ErrTypeTimeout},
		{"internal", InternalError("broken invariant", cause), ErrTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if GetType(tt.err) != tt.wantType {
				t.Errorf("GetType() = %v, want %v", GetType(tt.err), tt.wantType)
			}
			if !IsType(tt.err, tt.wantType) {
				t.Errorf("IsType() = false for own type")
			}
		})
	}
}

func TestGetTypeUnwrapsWrappedErrors(t *testing.T) {
	inner := TransientError("upstream 503", nil)
	wrapped := fmt.Errorf("max retries exceeded: %w", inner)

	if got := GetType(wrapped); got != ErrTypeTransient {
		t.Errorf("GetType(wrapped) = %v, want transient", got)
	}
	if !IsType(wrapped, ErrTypeTransient) {
		t.Error("IsType() should see through fmt.Errorf wrapping")
	}
}

func TestGetTypeNonAppError(t *testing.T) {
	if got := GetType(stderrors.New("plain")); got != ErrTypeInternal {
		t.Errorf("GetType(plain) = %v, want internal", got)
	}
	if got := GetType(nil); got != "" {
		t.Errorf("GetType(nil) = %v, want empty", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := TransientError("request failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestWithContextAndCode(t *testing.T) {
	err := PermanentError("rejected").
		WithContext("status", 404).
		WithContext("url", "https://api.example.com/devices").
		WithCode("DEVICE_NOT_FOUND")

	msg := err.Error()
	for _, want := range []string{"permanent", "rejected", "DEVICE_NOT_FOUND", "status=404"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, should contain %q", msg, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", TransientError("503", nil), true},
		{"wrapped transient", fmt.Errorf("attempt failed: %w", TransientError("503", nil)), true},
		{"timeout is terminal", TimeoutError("call"), false},
		{"auth", AuthError("401", nil), false},
		{"permanent", PermanentError("404"), false},
		{"plain error", stderrors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
