package entities

import "strings"

// NotifyEvent is a bitset of keyspace event categories.
// Values match the host's REDISMODULE_NOTIFY_* flags.
type NotifyEvent uint32

const (
	NotifyGeneric NotifyEvent = 1 << 2
	NotifyString  NotifyEvent = 1 << 3
	NotifyList    NotifyEvent = 1 << 4
	NotifySet     NotifyEvent = 1 << 5
	NotifyHash    NotifyEvent = 1 << 6
	NotifyZSet    NotifyEvent = 1 << 7
	NotifyExpired NotifyEvent = 1 << 8
	NotifyEvicted NotifyEvent = 1 << 9
	NotifyStream  NotifyEvent = 1 << 10
	NotifyKeyMiss NotifyEvent = 1 << 11
	NotifyLoaded  NotifyEvent = 1 << 12
	NotifyModule  NotifyEvent = 1 << 13

	// NotifyAll is every category except key-miss, loaded and module, which
	// hosts require to be requested explicitly.
	NotifyAll = NotifyGeneric | NotifyString | NotifyList | NotifySet | NotifyHash |
		NotifyZSet | NotifyExpired | NotifyEvicted | NotifyStream

	notifyKnown = NotifyAll | NotifyKeyMiss | NotifyLoaded | NotifyModule
)

var notifyNames = []struct {
	event NotifyEvent
	name  string
}{
	{NotifyGeneric, "generic"},
	{NotifyString, "string"},
	{NotifyList, "list"},
	{NotifySet, "set"},
	{NotifyHash, "hash"},
	{NotifyZSet, "zset"},
	{NotifyExpired, "expired"},
	{NotifyEvicted, "evicted"},
	{NotifyStream, "stream"},
	{NotifyKeyMiss, "keymiss"},
	{NotifyLoaded, "loaded"},
	{NotifyModule, "module"},
}

// NotifyEventFromBitsTruncate converts a raw host event code into the known
// bitset. Unrecognized bits are dropped.
func NotifyEventFromBitsTruncate(code int32) NotifyEvent {
	return NotifyEvent(uint32(code)) & notifyKnown //nolint:gosec // G115: bit pattern reinterpretation
}

// ParseNotifyEvent parses a single category name such as "expired".
func ParseNotifyEvent(name string) (NotifyEvent, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "all" {
		return NotifyAll, true
	}
	for _, e := range notifyNames {
		if e.name == n {
			return e.event, true
		}
	}
	return 0, false
}

// Bits returns the raw code handed to the host at subscription time.
func (e NotifyEvent) Bits() int32 {
	return int32(e) //nolint:gosec // G115: all known bits fit in 14 bits
}

// Has reports whether every bit of other is set in e.
func (e NotifyEvent) Has(other NotifyEvent) bool {
	return e&other == other
}

// Intersects reports whether e and other share at least one bit.
func (e NotifyEvent) Intersects(other NotifyEvent) bool {
	return e&other != 0
}

// IsEmpty reports whether no category is set.
func (e NotifyEvent) IsEmpty() bool {
	return e == 0
}

// Names returns the category names set in e, in bit order.
func (e NotifyEvent) Names() []string {
	var names []string
	for _, n := range notifyNames {
		if e&n.event != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (e NotifyEvent) String() string {
	if e == 0 {
		return "none"
	}
	return strings.Join(e.Names(), "|")
}
