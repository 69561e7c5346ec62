package entities

import "fmt"

// ErrorDetail provides structured error information.
// Used for reply errors, lifecycle diagnostics and as wire protocol error format.
// Error Types: "decode", "handler", "panic", "registration", "lifecycle", "handshake", "internal"
type ErrorDetail struct {
	// Wrapped contains a wrapped error for error chains.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	// Details contains additional error context.
	Details map[string]any `json:"details,omitempty"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Code is the reply prefix the host shows to clients (e.g. "ERR", "WRONGTYPE").
	Code string `json:"code"`

	// Stack contains the stack trace for panic errors.
	Stack []byte `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" && e.Type != "handler" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// ReplyMessage formats the detail as a host error reply: "<CODE> <message>".
// The code defaults to "ERR".
func (e *ErrorDetail) ReplyMessage() string {
	if e == nil {
		return "ERR"
	}
	code := e.Code
	if code == "" {
		code = "ERR"
	}
	return code + " " + e.Message
}

// NewErrorDetail creates a new ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetails returns the ErrorDetail with the given details attached.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

// WithCode returns the ErrorDetail with the given reply code attached.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
