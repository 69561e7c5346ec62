// Package errors holds the error codes the module host attaches to its
// failures and a helper that logs them with their context.
package errors

import (
	"log/slog"

	"github.com/samber/oops"
)

// Codes attached with oops.Code by the host and the CLI.
const (
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeModuleNotFound = "MODULE_NOT_FOUND"
	CodeCompileFailed  = "COMPILE_FAILED"
	CodeMissingExport  = "MISSING_EXPORT"
	CodeLoadFailed     = "LOAD_FAILED"
	CodeUnloadFailed   = "UNLOAD_FAILED"
	CodeAlreadyLoaded  = "ALREADY_LOADED"
	CodeNotLoaded      = "NOT_LOADED"
	CodeManifestDrift  = "MANIFEST_MISMATCH"
	CodeRuntimeFailed  = "RUNTIME_FAILED"
)

// Code returns the oops code attached to err, or "".
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// LogError logs err at error level, expanding the code and context of oops
// errors into attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	logger.Error(msg, attrs...)
}
