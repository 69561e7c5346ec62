package validation_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/reglet-dev/modbridge/application/validation"
	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest() *entities.Manifest {
	return &entities.Manifest{
		Name:    "foo",
		Version: 1,
		DataTypes: []entities.DataType{
			{Name: "foo-type1", EncodingVersion: 0},
		},
		Commands: []entities.CommandManifest{
			{Name: "foo.get", Flags: "readonly", FirstKey: 1, LastKey: 1, KeyStep: 1},
			{Name: "foo.set", Flags: "write deny-oom", FirstKey: 1, LastKey: 1, KeyStep: 1},
			{Name: "foo.info", Flags: "", FirstKey: 0, LastKey: 0, KeyStep: 0},
			{Name: "foo.mget", Flags: "readonly", FirstKey: 1, LastKey: -1, KeyStep: 1},
		},
		Subscriptions: []entities.SubscriptionManifest{
			{Events: []string{"expired", "evicted"}},
		},
	}
}

func violations(t *testing.T, err error) []validation.Violation {
	t.Helper()
	var verr *validation.Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %v", err)
	return verr.Violations
}

func TestManifestValidator_Valid(t *testing.T) {
	v := validation.NewManifestValidator()
	assert.NoError(t, v.Validate(validManifest()))
}

func TestManifestValidator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *entities.Manifest)
		field  string
	}{
		{"empty name", func(m *entities.Manifest) { m.Name = "" }, "Name"},
		{"long name", func(m *entities.Manifest) { m.Name = strings.Repeat("n", 64) }, "Name"},
		{"negative version", func(m *entities.Manifest) { m.Version = -1 }, "Version"},
		{"malformed flag", func(m *entities.Manifest) { m.Commands[1].Flags = "write bo$gus" }, "Commands[1].Flags"},
		{"command name with space", func(m *entities.Manifest) { m.Commands[0].Name = "foo get" }, "Commands[0].Name"},
		{"keystep missing", func(m *entities.Manifest) { m.Commands[0].KeyStep = 0 }, "Commands[0].FirstKey"},
		{"lastkey before firstkey", func(m *entities.Manifest) { m.Commands[0].FirstKey = 2 }, "Commands[0].FirstKey"},
		{"keyless with lastkey", func(m *entities.Manifest) { m.Commands[2].LastKey = 1 }, "Commands[2].FirstKey"},
		{"duplicate command", func(m *entities.Manifest) { m.Commands[1].Name = "FOO.GET" }, "Commands[1].Name"},
		{"short type name", func(m *entities.Manifest) { m.DataTypes[0].Name = "short" }, "DataTypes[0].Name"},
		{"type name charset", func(m *entities.Manifest) { m.DataTypes[0].Name = "foo type1" }, "DataTypes[0].Name"},
		{"encoding version", func(m *entities.Manifest) { m.DataTypes[0].EncodingVersion = 2048 }, "DataTypes[0].EncodingVersion"},
		{"unknown event", func(m *entities.Manifest) { m.Subscriptions[0].Events = []string{"exploded"} }, "Subscriptions[0].Events[0]"},
		{"empty subscription", func(m *entities.Manifest) { m.Subscriptions[0].Events = nil }, "Subscriptions[0].Events"},
	}

	v := validation.NewManifestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)

			err := v.Validate(m)
			require.Error(t, err)

			var fields []string
			for _, viol := range violations(t, err) {
				fields = append(fields, viol.Field)
			}
			assert.Contains(t, fields, tt.field)
			assert.Contains(t, err.Error(), "manifest validation failed")
		})
	}
}

func TestManifestValidator_FlagVocabulary(t *testing.T) {
	tests := []struct {
		name    string
		opts    []validation.Option
		flags   string
		wantErr bool
	}{
		{name: "default accepts unlisted token", flags: "readonly no-async-loading"},
		{name: "default accepts unknown well-formed token", flags: "write sometimes"},
		{name: "default rejects malformed token", flags: "write some/times", wantErr: true},
		{name: "default rejects NUL", flags: "write\x00", wantErr: true},
		{name: "vocabulary accepts listed tokens", opts: []validation.Option{validation.WithFlagVocabulary(entities.CommandFlags...)}, flags: "READONLY no-async-loading"},
		{name: "vocabulary rejects unknown token", opts: []validation.Option{validation.WithFlagVocabulary(entities.CommandFlags...)}, flags: "write bogus", wantErr: true},
		{name: "custom vocabulary", opts: []validation.Option{validation.WithFlagVocabulary("write")}, flags: "readonly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			m.Commands[1].Flags = tt.flags

			err := validation.NewManifestValidator(tt.opts...).Validate(m)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, "Commands[1].Flags", violations(t, err)[0].Field)
		})
	}
}

func TestManifestValidator_Nil(t *testing.T) {
	err := validation.NewManifestValidator().Validate(nil)
	require.Error(t, err)
	assert.Len(t, violations(t, err), 1)
}
