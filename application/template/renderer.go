// Package template renders expected-manifest files before they are parsed,
// so one file can describe a module loaded with different arguments.
package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/reglet-dev/modbridge/domain/ports"
)

type templateConfig struct {
	strict bool
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables failing on missing keys (default: enabled).
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// GoTemplateEngine implements ports.TemplateEngine with text/template.
// Values are reachable as {{ .config.key }}.
type GoTemplateEngine struct {
	config templateConfig
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"join": func(sep string, elems []string) string {
		return strings.Join(elems, sep)
	},
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := templateConfig{strict: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

// Render executes raw as a template over config.
func (e *GoTemplateEngine) Render(raw []byte, config map[string]any) ([]byte, error) {
	tmpl := template.New("manifest").Funcs(funcs)
	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{"config": config}); err != nil {
		return nil, fmt.Errorf("failed to execute manifest template: %w", err)
	}
	return buf.Bytes(), nil
}
