package host

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/samber/oops"

	apptemplate "github.com/reglet-dev/modbridge/application/template"
	"github.com/reglet-dev/modbridge/application/validation"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
	hosterrors "github.com/reglet-dev/modbridge/errors"
	"github.com/reglet-dev/modbridge/infrastructure/parser"
)

type loaderConfig struct {
	templateEngine  ports.TemplateEngine
	parser          ports.ManifestParser
	validator       ports.ManifestValidator
	strictTemplates bool
}

// Loader reads expected-manifest files: render, parse, validate.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom manifest parser.
func WithParser(p ports.ManifestParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithValidator sets a custom manifest validator.
func WithValidator(v ports.ManifestValidator) LoaderOption {
	return func(c *loaderConfig) {
		c.validator = v
	}
}

// WithTemplateEngine sets a template engine.
func WithTemplateEngine(t ports.TemplateEngine) LoaderOption {
	return func(c *loaderConfig) {
		c.templateEngine = t
	}
}

// WithStrictTemplates enables/disables strict template mode.
// When enabled (default), template rendering fails if a referenced key is missing.
func WithStrictTemplates(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.strictTemplates = enabled
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := loaderConfig{
		parser:          parser.NewYamlManifestParser(),
		validator:       validation.NewManifestValidator(validation.WithFlagVocabulary(entities.CommandFlags...)),
		strictTemplates: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.templateEngine == nil {
		cfg.templateEngine = apptemplate.NewGoTemplateEngine(
			apptemplate.WithStrict(cfg.strictTemplates),
		)
	}
	return &Loader{config: cfg}
}

// LoadManifest renders raw with config, parses and validates it.
func (l *Loader) LoadManifest(raw []byte, config map[string]any) (*entities.Manifest, error) {
	errb := oops.In("loader").Code(hosterrors.CodeConfigInvalid)

	data, err := l.config.templateEngine.Render(raw, config)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to render manifest")
	}
	manifest, err := l.config.parser.Parse(data)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to parse manifest")
	}
	if err := l.config.validator.Validate(manifest); err != nil {
		return nil, errb.Wrap(err)
	}
	return manifest, nil
}

// CompareManifests lists every difference between what was expected and
// what a module actually registered. Command names compare
// case-insensitively and flags as sets.
func CompareManifests(expected, actual *entities.Manifest) []string {
	var diffs []string
	add := func(format string, args ...any) {
		diffs = append(diffs, fmt.Sprintf(format, args...))
	}

	if expected.Name != actual.Name {
		add("name: expected %q, got %q", expected.Name, actual.Name)
	}
	if expected.Version != actual.Version {
		add("version: expected %d, got %d", expected.Version, actual.Version)
	}
	if expected.APIVersion != 0 && expected.APIVersion != actual.APIVersion {
		add("api_version: expected %d, got %d", expected.APIVersion, actual.APIVersion)
	}

	types := make(map[string]int, len(actual.DataTypes))
	for _, dt := range actual.DataTypes {
		types[dt.Name] = dt.EncodingVersion
	}
	for _, dt := range expected.DataTypes {
		encver, ok := types[dt.Name]
		switch {
		case !ok:
			add("data type %s: not registered", dt.Name)
		case encver != dt.EncodingVersion:
			add("data type %s: expected encoding version %d, got %d", dt.Name, dt.EncodingVersion, encver)
		}
		delete(types, dt.Name)
	}
	for _, name := range sortedKeys(types) {
		add("data type %s: not expected", name)
	}

	commands := make(map[string]entities.CommandManifest, len(actual.Commands))
	for _, c := range actual.Commands {
		commands[strings.ToLower(c.Name)] = c
	}
	for _, want := range expected.Commands {
		key := strings.ToLower(want.Name)
		got, ok := commands[key]
		if !ok {
			add("command %s: not registered", want.Name)
			continue
		}
		delete(commands, key)
		if !sameFlags(want.Flags, got.Flags) {
			add("command %s: expected flags %q, got %q", want.Name, want.Flags, got.Flags)
		}
		if want.FirstKey != got.FirstKey || want.LastKey != got.LastKey || want.KeyStep != got.KeyStep {
			add("command %s: expected keys %d,%d,%d, got %d,%d,%d", want.Name,
				want.FirstKey, want.LastKey, want.KeyStep, got.FirstKey, got.LastKey, got.KeyStep)
		}
	}
	for _, key := range sortedKeys(commands) {
		add("command %s: not expected", commands[key].Name)
	}

	if len(expected.Subscriptions) != len(actual.Subscriptions) {
		add("subscriptions: expected %d, got %d", len(expected.Subscriptions), len(actual.Subscriptions))
	} else {
		for n := range expected.Subscriptions {
			want := normalized(expected.Subscriptions[n].Events)
			got := normalized(actual.Subscriptions[n].Events)
			if !slices.Equal(want, got) {
				add("subscription %d: expected %v, got %v", n, want, got)
			}
		}
	}
	return diffs
}

// Verify returns an error listing the differences, or nil.
func Verify(expected, actual *entities.Manifest) error {
	diffs := CompareManifests(expected, actual)
	if len(diffs) == 0 {
		return nil
	}
	return oops.In("loader").
		Code(hosterrors.CodeManifestDrift).
		With("differences", len(diffs)).
		Errorf("manifest mismatch:\n- %s", strings.Join(diffs, "\n- "))
}

func sameFlags(a, b string) bool {
	return slices.Equal(normalized(strings.Fields(a)), normalized(strings.Fields(b)))
}

func normalized(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = strings.ToLower(t)
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
