package hostfuncs

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/modbridge/domain/errors"
)

// ErrorResponse is the structured error a JSON host function returns to the
// guest. The guest decodes it instead of trapping.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "VALIDATION_ERROR", "INTERNAL_ERROR").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// ReplyError converts the response into an error reply.
func (e ErrorResponse) ReplyError() *errors.ReplyError {
	return errors.NewReplyError("ERR", e.Message)
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Code:    400,
	}
}

// NewNotFoundError creates an error response for unknown host function names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   "NOT_FOUND",
		Message: "unknown host function: " + name,
		Code:    404,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	return ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "panic: " + panicMessage(panicValue),
		Code:    500,
	}
}

func panicMessage(v any) string {
	switch x := v.(type) {
	case error:
		return x.Error()
	case string:
		return x
	default:
		return "panic recovered"
	}
}

// Command dispatch errors, as clients see them.

// NewUnknownCommandError reports a command the module never registered.
func NewUnknownCommandError(name string) *errors.ReplyError {
	return errors.NewReplyError("ERR", fmt.Sprintf("unknown command '%s'", name))
}

// NewNoSessionError reports a primitive called with a handle that belongs
// to no live call session.
func NewNoSessionError(handle uint64) *errors.ReplyError {
	return errors.NewReplyError("ERR", fmt.Sprintf("no call session for handle %d", handle))
}

// NewDeliveryError reports a trampoline that returned failure, meaning its
// reply could not be written.
func NewDeliveryError(name string) *errors.ReplyError {
	return errors.NewReplyError("ERR", fmt.Sprintf("command '%s' failed to deliver a reply", name))
}

// NewCommandPanicError reports a panic that escaped a command invocation on
// the host side.
func NewCommandPanicError(name string, panicValue any) *errors.ReplyError {
	return errors.NewReplyError("ERR", fmt.Sprintf("panic in command '%s': %s", name, panicMessage(panicValue)))
}
