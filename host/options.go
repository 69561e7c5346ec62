package host

import (
	"io"
	"log/slog"
	"os"

	"github.com/reglet-dev/modbridge/config"
	"github.com/reglet-dev/modbridge/hostfuncs"
	wazeroadapter "github.com/reglet-dev/modbridge/infrastructure/wazero"
)

type executorConfig struct {
	server      *hostfuncs.Server
	registry    *hostfuncs.HandlerRegistry
	logger      *slog.Logger
	metrics     *Metrics
	callChecker wazeroadapter.CallChecker
	stdout      io.Writer
	stderr      io.Writer
	serverOpts  []hostfuncs.ServerOption
	adapterOpts []wazeroadapter.AdapterOption
	memoryPages uint32
}

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

// WithServer hosts modules on s instead of a server the executor creates.
// Server options and metrics middleware are not applied to s.
func WithServer(s *hostfuncs.Server) Option {
	return func(c *executorConfig) {
		c.server = s
	}
}

// WithHostFunctions replaces the default host function registry. The
// registry should include hostfuncs.ModuleBundle for the executor's server.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(c *executorConfig) {
		c.registry = registry
	}
}

// WithLogger sets the logger for the executor and the server it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(c *executorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records command, event and load metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(c *executorConfig) {
		c.metrics = m
	}
}

// WithCallChecker restricts which commands modules may call re-entrantly.
func WithCallChecker(checker wazeroadapter.CallChecker) Option {
	return func(c *executorConfig) {
		c.callChecker = checker
	}
}

// WithServerOptions passes options to the server the executor creates.
func WithServerOptions(opts ...hostfuncs.ServerOption) Option {
	return func(c *executorConfig) {
		c.serverOpts = append(c.serverOpts, opts...)
	}
}

// WithAdapterOptions passes options to the wazero host module adapter.
func WithAdapterOptions(opts ...wazeroadapter.AdapterOption) Option {
	return func(c *executorConfig) {
		c.adapterOpts = append(c.adapterOpts, opts...)
	}
}

// WithMemoryLimitPages caps guest linear memory in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *executorConfig) {
		c.memoryPages = pages
	}
}

// WithGuestOutput routes the guest's WASI stdout and stderr.
func WithGuestOutput(stdout, stderr io.Writer) Option {
	return func(c *executorConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// OptionsFromConfig translates a host configuration into executor options.
// logger, when not nil, is used as is; otherwise a text logger on stderr at
// the configured level is created.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) ([]Option, error) {
	if logger == nil {
		level, err := cfg.SlogLevel()
		if err != nil {
			return nil, err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	opts := []Option{
		WithLogger(logger),
		WithServerOptions(
			hostfuncs.WithAPIConstraint(cfg.APIConstraint),
			hostfuncs.WithMaxReplySize(cfg.MaxReplySize),
		),
		WithAdapterOptions(wazeroadapter.WithMaxRequestSize(cfg.MaxRequestSize)),
	}
	if cfg.MaxMemoryPages > 0 {
		opts = append(opts, WithMemoryLimitPages(cfg.MaxMemoryPages))
	}
	if len(cfg.AllowCalls) > 0 {
		checker, err := wazeroadapter.NewGlobCallChecker(cfg.AllowCalls...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCallChecker(checker))
	}
	return opts, nil
}
