// Package config loads the module host configuration: a YAML file overlaid
// by command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	hosterrors "github.com/reglet-dev/modbridge/errors"
	"github.com/reglet-dev/modbridge/hostfuncs"
)

// Config is the module host configuration. Keys are the same in the YAML
// file and on the command line.
type Config struct {
	// Modules are doublestar globs naming module binaries.
	Modules []string `koanf:"modules"`
	// Args are passed to the module's load entry point.
	Args []string `koanf:"args"`
	// AllowCalls are globs of commands modules may call re-entrantly. Empty
	// allows everything.
	AllowCalls []string `koanf:"allow-calls"`
	// APIConstraint is the semver constraint module API versions must meet.
	APIConstraint string `koanf:"api-constraint"`
	// Expect is an optional expected-manifest file checked after load.
	Expect   string `koanf:"expect"`
	LogLevel string `koanf:"log-level"`
	// MaxRequestSize bounds guest-to-host requests in bytes.
	MaxRequestSize uint32 `koanf:"max-request-size"`
	// MaxReplySize bounds one command's reply in bytes.
	MaxReplySize int `koanf:"max-reply-size"`
	// MaxMemoryPages caps guest linear memory in 64KiB pages (0: wazero default).
	MaxMemoryPages uint32 `koanf:"max-memory-pages"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		APIConstraint:  hostfuncs.DefaultAPIConstraint,
		LogLevel:       "info",
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
		MaxReplySize:   hostfuncs.DefaultMaxReplySize,
	}
}

// RegisterFlags adds a flag per key to fs with Default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringSlice("modules", nil, "module binaries (doublestar globs)")
	fs.StringSlice("args", nil, "arguments passed to the module on load")
	fs.StringSlice("allow-calls", nil, "command globs modules may call re-entrantly")
	fs.String("api-constraint", d.APIConstraint, "accepted module API versions (semver constraint)")
	fs.String("expect", "", "expected manifest file checked after load")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.Uint32("max-request-size", d.MaxRequestSize, "maximum guest request size in bytes")
	fs.Int("max-reply-size", d.MaxReplySize, "maximum reply size in bytes")
	fs.Uint32("max-memory-pages", d.MaxMemoryPages, "guest memory limit in 64KiB pages")
}

// Load reads path (when not empty) and overlays the flags in fs that were
// set explicitly. Flags left at their defaults only fill keys the file
// does not set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(hosterrors.CodeConfigInvalid).With("path", path).Wrapf(err, "read config")
		}
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, oops.Code(hosterrors.CodeConfigInvalid).Wrapf(err, "read flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(hosterrors.CodeConfigInvalid).With("path", path).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and glob syntax.
func (c *Config) Validate() error {
	errb := oops.Code(hosterrors.CodeConfigInvalid)
	for _, p := range append(append([]string(nil), c.Modules...), c.AllowCalls...) {
		if !doublestar.ValidatePattern(p) {
			return errb.With("pattern", p).Errorf("invalid glob %q", p)
		}
	}
	if c.MaxRequestSize == 0 {
		return errb.Errorf("max-request-size must be positive")
	}
	if c.MaxReplySize <= 0 {
		return errb.Errorf("max-reply-size must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return errb.Wrap(err)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log-level %q", c.LogLevel)
	}
	return level, nil
}

// ResolveModules expands Modules into a sorted list of existing files.
// Patterns without glob meta characters must name an existing file.
func (c *Config) ResolveModules() ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range c.Modules {
		if !strings.ContainsAny(pattern, "*?[{") {
			if _, err := os.Stat(pattern); err != nil {
				return nil, oops.Code(hosterrors.CodeModuleNotFound).With("path", pattern).Wrap(err)
			}
			seen[pattern] = struct{}{}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, oops.Code(hosterrors.CodeConfigInvalid).With("pattern", pattern).Wrap(err)
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, oops.Code(hosterrors.CodeModuleNotFound).With("patterns", c.Modules).Errorf("no module matches %v", c.Modules)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
