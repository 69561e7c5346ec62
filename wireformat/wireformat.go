// Package wireformat defines the formats that cross the boundary between the
// module host and a guest module: JSON request structures for guest-to-host
// calls, and RESP2 for replies. These types must remain stable and backward
// compatible as they define the ABI contract.
package wireformat

import (
	"fmt"

	"github.com/reglet-dev/modbridge/domain/entities"
)

// ErrorDetail is the structured error carried in responses.
type ErrorDetail = entities.ErrorDetail

// CallRequestWire is the JSON wire format for a re-entrant command call from
// Guest to Host.
type CallRequestWire struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Validate checks the request before it is dispatched.
func (r *CallRequestWire) Validate() error {
	if r.Command == "" {
		return fmt.Errorf("call request: command is required")
	}
	return nil
}

// Argv returns the full argument vector, command name first.
func (r *CallRequestWire) Argv() []string {
	argv := make([]string, 0, len(r.Args)+1)
	argv = append(argv, r.Command)
	return append(argv, r.Args...)
}

// CallResponseWire is the JSON wire format for the Host's answer to a
// CallRequestWire. Reply holds one RESP2 reply; Error is set when the call
// could not be made at all or the command replied with an error.
type CallResponseWire struct {
	Error *ErrorDetail `json:"error,omitempty"`
	Reply []byte       `json:"reply,omitempty"`
}
