package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCodedError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CodedError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CodeSourceNotAvailable, "no camera configured"),
			expected: "source.not_available: no camera configured",
		},
		{
			name:     "error with cause",
			err:      Wrap(CodeSourceUpstream, "download failed", errors.New("status 404")),
			expected: "source.upstream: download failed (status 404)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCodedError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	err := Wrap(CodeTransportWriteFailed, "wrapped", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the original cause")
	}

	err2 := New(CodeProtocolInvalidCommand, "bad")
	if err2.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"coded error", New(CodeServerBusy, "busy"), CodeServerBusy},
		{"wrapped coded error", fmt.Errorf("outer: %w", New(CodeSourceTimeout, "slow")), CodeSourceTimeout},
		{"plain error", errors.New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestToCodeAndMessage(t *testing.T) {
	code, msg := ToCodeAndMessage(InvalidCommand("unknown command: foo"))
	if code != CodeProtocolInvalidCommand || msg != "unknown command: foo" {
		t.Errorf("got (%q, %q)", code, msg)
	}

	code, msg = ToCodeAndMessage(errors.New("plain"))
	if code != CodeUnknown || msg != "plain" {
		t.Errorf("got (%q, %q)", code, msg)
	}

	code, msg = ToCodeAndMessage(nil)
	if code != "" || msg != "" {
		t.Errorf("got (%q, %q), want empty", code, msg)
	}
}

func TestUpstream(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  string
	}{
		{"deadline", context.DeadlineExceeded, CodeSourceTimeout},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), CodeSourceTimeout},
		{"generic", errors.New("status 500"), CodeSourceUpstream},
		{"already coded", NotAvailable("nothing"), CodeSourceNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Upstream("image generation", tt.cause)
			if got := GetCode(err); got != tt.want {
				t.Errorf("GetCode(Upstream()) = %q, want %q", got, tt.want)
			}
		})
	}

	if Upstream("x", nil) != nil {
		t.Error("Upstream(nil) should be nil")
	}
}

func TestIsTransport(t *testing.T) {
	if !IsTransport(Wrap(CodeTransportWriteFailed, "write", errors.New("broken pipe"))) {
		t.Error("write failure should be fatal")
	}
	if IsTransport(New(CodeSourceTimeout, "slow")) {
		t.Error("source timeout should not be fatal")
	}
	if IsTransport(nil) {
		t.Error("nil should not be fatal")
	}
}
