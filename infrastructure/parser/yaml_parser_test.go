package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYamlManifestParser_Parse(t *testing.T) {
	raw := `
name: hello
version: 1
api_version: 1
data_types:
  - name: hellotype
    encoding_version: 2
commands:
  - name: hello.echo
    flags: readonly fast
    first_key: 1
    last_key: 1
    key_step: 1
subscriptions:
  - events: [generic, expired]
`
	m, err := NewYamlManifestParser().Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "hello", m.Name)
	assert.Equal(t, 1, m.APIVersion)
	require.Len(t, m.DataTypes, 1)
	assert.Equal(t, "hellotype", m.DataTypes[0].Name)
	assert.Equal(t, 2, m.DataTypes[0].EncodingVersion)
	assert.Equal(t, []string{"hello.echo"}, m.CommandNames())
	assert.Equal(t, "readonly fast", m.Commands[0].Flags)
	require.Len(t, m.Subscriptions, 1)
	assert.Equal(t, []string{"generic", "expired"}, m.Subscriptions[0].Events)
}

func TestYamlManifestParser_JSON(t *testing.T) {
	m, err := NewYamlManifestParser().Parse([]byte(`{"name":"j","version":3,"commands":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "j", m.Name)
	assert.Equal(t, 3, m.Version)
}

func TestYamlManifestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		opts    []ParserOption
		wantErr string
	}{
		{name: "empty", raw: "  \n", wantErr: "empty manifest"},
		{name: "malformed", raw: "name: [", wantErr: "decode manifest"},
		{name: "unknown field", raw: "name: x\ncapabilities: []\n", wantErr: "capabilities"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYamlManifestParser(tt.opts...).Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestYamlManifestParser_LenientFields(t *testing.T) {
	m, err := NewYamlManifestParser(WithKnownFields(false)).Parse([]byte("name: x\ncapabilities: []\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", m.Name)
}
