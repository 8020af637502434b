// Package errors provides stable error codes for everything the server can
// report back to a client.
//
// Codes follow the format {domain}.{error}. The domain names the error kind:
//   - protocol: malformed or unknown commands (connection stays open)
//   - encoding: bad pixel buffers or unsupported graphics modes (connection stays open)
//   - source: image generation, search, download or camera failures (connection stays open)
//   - transport: socket read/write failures (fatal to the connection)
//   - state: session state invariant violations (logged, connection closed)
//
// Clients receive the code and message on an ERROR line, e.g.
//
//	ERROR: source.timeout: image generation timed out
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Protocol domain
	CodeProtocolInvalidCommand  = "protocol.invalid_command"   // Unknown keyword, bad arguments
	CodeProtocolInvalidConfig   = "protocol.invalid_config"    // Rejected openai-config value
	CodeProtocolNothingToRepeat = "protocol.nothing_to_repeat" // "next" without a previous command
	CodeProtocolLineTooLong     = "protocol.line_too_long"     // Command line exceeds the read buffer

	// Encoding domain
	CodeEncodingInvalidDimensions = "encoding.invalid_dimensions"
	CodeEncodingUnsupportedMode   = "encoding.unsupported_mode"

	// Source domain
	CodeSourceNotAvailable = "source.not_available" // Collaborator missing or has nothing to offer
	CodeSourceTimeout      = "source.timeout"       // Collaborator exceeded its deadline
	CodeSourceUpstream     = "source.upstream"      // Collaborator answered with an error

	// Transport domain
	CodeTransportReadFailed  = "transport.read_failed"
	CodeTransportWriteFailed = "transport.write_failed"

	// Server domain
	CodeServerBusy = "server.busy" // Connection cap reached

	// State domain
	CodeStateInvariant = "state.invariant"

	// General domain
	CodeUnknown = "error.unknown"
)

// CodedError wraps an error with a stable error code.
type CodedError struct {
	Code    string // Stable error code (e.g., "source.timeout")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for errors that carry no code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// IsTransport reports whether err is fatal to the connection that produced it.
func IsTransport(err error) bool {
	switch GetCode(err) {
	case CodeTransportReadFailed, CodeTransportWriteFailed, CodeStateInvariant:
		return true
	}
	return false
}

// Common error constructors for frequently used error types.

// InvalidCommand creates a "protocol.invalid_command" error.
func InvalidCommand(reason string) *CodedError {
	return New(CodeProtocolInvalidCommand, reason)
}

// NotAvailable creates a "source.not_available" error.
func NotAvailable(message string) *CodedError {
	return New(CodeSourceNotAvailable, message)
}

// Upstream classifies a collaborator failure. Deadline and cancellation
// errors become "source.timeout"; anything else becomes "source.upstream".
// Errors that already carry a code are returned unchanged.
func Upstream(message string, cause error) error {
	if cause == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(cause, &coded) {
		return cause
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return Wrap(CodeSourceTimeout, message+" timed out", cause)
	}
	return Wrap(CodeSourceUpstream, message+" failed", cause)
}
