package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyEventFromBitsTruncate(t *testing.T) {
	tests := []struct {
		name string
		code int32
		want NotifyEvent
	}{
		{"expired only", int32(NotifyExpired), NotifyExpired},
		{"combined", int32(NotifyExpired | NotifyEvicted), NotifyExpired | NotifyEvicted},
		{"unknown high bit dropped", int32(NotifyExpired) | 1<<20, NotifyExpired},
		{"low reserved bits dropped", 0b11, 0},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NotifyEventFromBitsTruncate(tt.code))
		})
	}
}

func TestNotifyEvent_Has(t *testing.T) {
	set := NotifyExpired | NotifyEvicted
	assert.True(t, set.Has(NotifyExpired))
	assert.True(t, set.Has(NotifyExpired|NotifyEvicted))
	assert.False(t, set.Has(NotifyGeneric))
	assert.True(t, set.Intersects(NotifyEvicted|NotifyGeneric))
	assert.False(t, set.Intersects(NotifyGeneric))
}

func TestNotifyEvent_String(t *testing.T) {
	assert.Equal(t, "none", NotifyEvent(0).String())
	assert.Equal(t, "generic|expired", (NotifyExpired | NotifyGeneric).String())
	assert.Equal(t, []string{"expired", "evicted"}, (NotifyEvicted | NotifyExpired).Names())
}

func TestParseNotifyEvent(t *testing.T) {
	e, ok := ParseNotifyEvent(" Expired ")
	assert.True(t, ok)
	assert.Equal(t, NotifyExpired, e)

	e, ok = ParseNotifyEvent("all")
	assert.True(t, ok)
	assert.Equal(t, NotifyAll, e)

	_, ok = ParseNotifyEvent("bogus")
	assert.False(t, ok)
}
