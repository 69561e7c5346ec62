package hostfuncs

import (
	"bytes"
)

// DefaultMaxRequestSize limits the JSON payload a guest may pass to a host
// function (1MB). A module cannot make the host allocate more by claiming a
// larger length.
const DefaultMaxRequestSize = 1 * 1024 * 1024

// BoundedBuffer accumulates a session's reply frames up to a fixed limit.
// Writes past the limit are discarded and mark the buffer Truncated; the
// server then reports the reply as too large instead of returning a cut-off
// frame.
type BoundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	Truncated bool
}

// NewBoundedBuffer creates a BoundedBuffer holding at most limit bytes.
func NewBoundedBuffer(limit int) *BoundedBuffer {
	return &BoundedBuffer{limit: limit}
}

// Write implements io.Writer. It never returns a short write, so frames can
// be written with a single call and checked through Truncated afterwards.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		b.Truncated = b.Truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.Truncated = true
		b.buffer.Write(p[:remaining])
		return len(p), nil
	}
	return b.buffer.Write(p)
}

// String returns the buffer contents as a string.
func (b *BoundedBuffer) String() string {
	return b.buffer.String()
}

// Bytes returns the buffer contents. The slice is valid until the next Write
// or Reset.
func (b *BoundedBuffer) Bytes() []byte {
	return b.buffer.Bytes()
}

// Len returns the current length of the buffer.
func (b *BoundedBuffer) Len() int {
	return b.buffer.Len()
}

// Reset discards the contents and clears Truncated.
func (b *BoundedBuffer) Reset() {
	b.buffer.Reset()
	b.Truncated = false
}
