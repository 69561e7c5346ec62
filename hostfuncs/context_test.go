package hostfuncs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHostContext(t *testing.T) {
	hc := NewHostContext(context.Background(), "call", 7)

	require.NotNil(t, hc)
	assert.Equal(t, "call", hc.FunctionName())
	assert.EqualValues(t, 7, hc.Handle())
}

func TestHostContext_SetGetValue(t *testing.T) {
	hc := NewHostContext(context.Background(), "log_message", 1)

	_, ok := hc.GetValue("key1")
	assert.False(t, ok)

	hc.SetValue("key1", "value1")
	hc.SetValue("key2", 42)

	val, ok := hc.GetValue("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", val)

	val2, ok := hc.GetValue("key2")
	assert.True(t, ok)
	assert.Equal(t, 42, val2)
}

func TestHostContext_ImplementsContext(t *testing.T) {
	hc := NewHostContext(context.Background(), "call", 1)

	var ctx context.Context = hc
	assert.NotNil(t, ctx)
	assert.Nil(t, hc.Done())
	assert.Nil(t, hc.Err())
	assert.Nil(t, hc.Value("nonexistent"))
}

func TestHostContextFrom(t *testing.T) {
	t.Run("wraps plain context", func(t *testing.T) {
		hc := HostContextFrom(context.Background(), "call", 3)
		assert.Equal(t, "call", hc.FunctionName())
		assert.EqualValues(t, 3, hc.Handle())
	})

	t.Run("returns existing HostContext unchanged", func(t *testing.T) {
		original := NewHostContext(context.Background(), "original", 1)
		original.SetValue("marker", true)

		returned := HostContextFrom(original, "different", 2)

		assert.Equal(t, "original", returned.FunctionName())
		assert.EqualValues(t, 1, returned.Handle())
		val, ok := returned.GetValue("marker")
		assert.True(t, ok)
		assert.Equal(t, true, val)
	})
}
