// Package validation checks module manifests against the host's registration
// rules using go-playground/validator struct tags.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
)

var typeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Violation is a single failed rule.
type Violation struct {
	Field   string
	Message string
}

// Error aggregates every violation found in a manifest.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n- %s: %s", v.Field, v.Message)
	}
	return b.String()
}

// ManifestValidator implements ports.ManifestValidator.
type ManifestValidator struct {
	validate *validator.Validate
	flags    map[string]struct{}
}

var _ ports.ManifestValidator = (*ManifestValidator)(nil)

// Option configures a ManifestValidator.
type Option func(*ManifestValidator)

// WithFlagVocabulary restricts command flag tokens to tokens. Without it
// only the shape of each token is checked and the host's create-command
// primitive decides which flags it knows.
func WithFlagVocabulary(tokens ...string) Option {
	return func(m *ManifestValidator) {
		m.flags = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			m.flags[strings.ToLower(t)] = struct{}{}
		}
	}
}

// NewManifestValidator creates a validator with the module rules registered.
func NewManifestValidator(opts ...Option) *ManifestValidator {
	m := &ManifestValidator{}
	for _, opt := range opts {
		opt(m)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "modname", func(fl validator.FieldLevel) bool {
		return entities.ValidateModuleName(fl.Field().String()) == nil
	})
	mustRegister(v, "cmdname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "" && !strings.ContainsAny(name, " \t\r\n\x00")
	})
	mustRegister(v, "cmdflags", func(fl validator.FieldLevel) bool {
		return m.validFlags(fl.Field().String())
	})
	mustRegister(v, "typename", func(fl validator.FieldLevel) bool {
		return typeNamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "notifyevent", func(fl validator.FieldLevel) bool {
		_, ok := entities.ParseNotifyEvent(fl.Field().String())
		return ok
	})
	v.RegisterStructValidation(validateKeySpec, entities.CommandManifest{})
	v.RegisterStructValidation(validateUnique, entities.Manifest{})
	m.validate = v
	return m
}

func (m *ManifestValidator) validFlags(flags string) bool {
	for _, t := range strings.Fields(strings.ToLower(flags)) {
		if !entities.ValidFlagToken(t) {
			return false
		}
		if m.flags == nil {
			continue
		}
		if _, ok := m.flags[t]; !ok {
			return false
		}
	}
	return true
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Validate checks the manifest and returns an *Error listing violations.
func (m *ManifestValidator) Validate(manifest *entities.Manifest) error {
	if manifest == nil {
		return &Error{Violations: []Violation{{Field: "manifest", Message: "is nil"}}}
	}
	err := m.validate.Struct(manifest)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation error: %w", err)
	}

	out := &Error{}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, Violation{
			Field:   strings.TrimPrefix(fe.Namespace(), "Manifest."),
			Message: describe(fe),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "modname":
		return fmt.Sprintf("must be 1..%d bytes without NUL", entities.MaxModuleNameLen)
	case "cmdname":
		return "must be non-empty and contain no whitespace"
	case "cmdflags":
		return fmt.Sprintf("%q contains a malformed token or one outside the flag vocabulary", fe.Value())
	case "typename", "len":
		return fmt.Sprintf("must be exactly %d characters from [A-Za-z0-9_-]", entities.DataTypeNameLen)
	case "notifyevent":
		return fmt.Sprintf("unknown event category %q", fe.Value())
	case "keyspec":
		return "firstkey/lastkey/keystep are inconsistent"
	case "unique":
		return fmt.Sprintf("duplicate name %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q rule (%v)", fe.Tag(), fe.Value())
	}
}

// validateKeySpec applies entities.ValidKeySpec to a command.
func validateKeySpec(sl validator.StructLevel) {
	c := sl.Current().Interface().(entities.CommandManifest)
	if !entities.ValidKeySpec(c.FirstKey, c.LastKey, c.KeyStep) {
		sl.ReportError(c.FirstKey, "FirstKey", "FirstKey", "keyspec", "")
	}
}

func validateUnique(sl validator.StructLevel) {
	m := sl.Current().Interface().(entities.Manifest)

	seen := make(map[string]struct{}, len(m.Commands))
	for i, c := range m.Commands {
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			sl.ReportError(c.Name, fmt.Sprintf("Commands[%d].Name", i), "Name", "unique", c.Name)
		}
		seen[key] = struct{}{}
	}

	types := make(map[string]struct{}, len(m.DataTypes))
	for i, dt := range m.DataTypes {
		if _, dup := types[dt.Name]; dup {
			sl.ReportError(dt.Name, fmt.Sprintf("DataTypes[%d].Name", i), "Name", "unique", dt.Name)
		}
		types[dt.Name] = struct{}{}
	}
}
