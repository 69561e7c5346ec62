// Package errors provides domain-specific error types for the module bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/modbridge/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

var (
	// ErrContextExpired is returned when a Context is used after the host
	// call it belongs to has returned.
	ErrContextExpired = stdErrors.New("context used outside of its host call")

	// ErrNotLoaded is returned when an operation requires a loaded module.
	ErrNotLoaded = stdErrors.New("module is not loaded")

	// ErrWrongArity is the conventional reply for a bad argument count.
	ErrWrongArity = &ReplyError{Code: "ERR", Message: "wrong number of arguments"}

	// ErrWrongType is the conventional reply for an operation against a key
	// holding the wrong kind of value.
	ErrWrongType = &ReplyError{Code: "WRONGTYPE", Message: "Operation against a key holding the wrong kind of value"}
)

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	// The outermost classified error wins, so a FaultError keeps its site
	// even when the panic value is itself an ErrorDetail.
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		switch v := e.(type) {
		case *entities.ErrorDetail:
			return v
		case DetailedError:
			return v.ToErrorDetail()
		}
	}

	// Joined errors have no single Unwrap chain.
	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}
	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	// Anything else is an application-level failure reported by a handler.
	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "handler",
	}
}

// ReplyMessage renders err the way the host shows it to a client.
func ReplyMessage(err error) string {
	return ToErrorDetail(err).ReplyMessage()
}

// ReplyError is an application error with an explicit reply code.
type ReplyError struct {
	Code    string
	Message string
}

// NewReplyError creates a ReplyError. An empty code means "ERR".
func NewReplyError(code, message string) *ReplyError {
	return &ReplyError{Code: code, Message: message}
}

func (e *ReplyError) Error() string {
	return e.Message
}

// ToErrorDetail implements DetailedError.
func (e *ReplyError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Message, Type: "handler", Code: e.Code}
}

// DecodeError reports a host argument whose bytes are not valid UTF-8, or a
// malformed argument vector.
type DecodeError struct {
	Err   error
	Index int
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("argument %d: %v", e.Index, e.Err)
	}
	return "UTF8 encoding error in handler args"
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "decode",
		Details: map[string]any{"index": e.Index},
	}
}

// FaultError is produced by the fault barrier when extension code panics.
type FaultError struct {
	// Value is the recovered panic value.
	Value any
	// Site names where the fault happened, e.g. "command handler for foo.get".
	Site  string
	Stack []byte
}

func (e *FaultError) Error() string {
	return "caught panic in " + e.Site
}

// Unwrap returns the panic value when it is an error.
func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ToErrorDetail implements DetailedError.
func (e *FaultError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "panic",
		Stack:   e.Stack,
		Details: map[string]any{"panic": fmt.Sprint(e.Value)},
	}
}

// RegistrationError reports that a host registration primitive refused a
// declaration.
type RegistrationError struct {
	Err  error
	Kind string // "command", "data type", "event handler", "handshake"
	Name string
}

func (e *RegistrationError) Error() string {
	msg := fmt.Sprintf("failed to register %s %q", e.Kind, e.Name)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *RegistrationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "registration"}
}

// LifecycleError reports an init or deinit hook failure.
type LifecycleError struct {
	Err   error
	Stage string // "init" or "deinit"
	Index int
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s hook %d failed: %v", e.Stage, e.Index, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LifecycleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "lifecycle", Wrapped: ToErrorDetail(e.Err)}
}

// HandshakeError reports that the host refused the module handshake.
type HandshakeError struct {
	Module     string
	Version    int
	APIVersion int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("host rejected handshake for module %s (version %d, api %d)", e.Module, e.Version, e.APIVersion)
}

// ToErrorDetail implements DetailedError.
func (e *HandshakeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "handshake"}
}
