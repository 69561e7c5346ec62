package wazero

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/hostfuncs"
	"github.com/reglet-dev/modbridge/wireformat"
)

// CallChecker decides whether a module may call a command re-entrantly.
type CallChecker interface {
	CheckCall(moduleName, command string) error
}

// CallDeniedError is returned when a call policy rejects a command.
type CallDeniedError struct {
	ModuleName string
	Command    string
}

func (e *CallDeniedError) Error() string {
	return fmt.Sprintf("module %q may not call '%s'", e.ModuleName, e.Command)
}

// GlobCallChecker allows commands whose lower-cased name matches one of a
// set of doublestar patterns, e.g. "hello.*" or "{ping,echo}".
type GlobCallChecker struct {
	patterns []string
}

var _ CallChecker = (*GlobCallChecker)(nil)

// NewGlobCallChecker validates patterns and returns a checker. With no
// patterns every call is denied.
func NewGlobCallChecker(patterns ...string) (*GlobCallChecker, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid call pattern %q", p)
		}
	}
	return &GlobCallChecker{patterns: append([]string(nil), patterns...)}, nil
}

// CheckCall implements CallChecker.
func (c *GlobCallChecker) CheckCall(moduleName, command string) error {
	name := strings.ToLower(command)
	for _, p := range c.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return nil
		}
	}
	return &CallDeniedError{ModuleName: moduleName, Command: command}
}

// WithCallPolicyMiddleware returns a middleware that checks every "call"
// host function request against checker before it reaches the Server. A
// denied call is answered with a NOPERM error reply.
func WithCallPolicyMiddleware(checker CallChecker) hostfuncs.Middleware {
	return func(next hostfuncs.ByteHandler) hostfuncs.ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			hctx, ok := ctx.(hostfuncs.HostContext)
			if !ok || hctx.FunctionName() != "call" {
				return next(ctx, payload)
			}

			var req wireformat.CallRequestWire
			if err := json.Unmarshal(payload, &req); err != nil {
				// Let the handler produce its validation error.
				return next(ctx, payload)
			}

			moduleName, _ := ModuleNameFromContext(ctx)
			if err := checker.CheckCall(moduleName, req.Command); err != nil {
				detail := entities.NewErrorDetail("policy", err.Error()).WithCode("NOPERM")
				return json.Marshal(wireformat.CallResponseWire{Error: detail})
			}
			return next(ctx, payload)
		}
	}
}
