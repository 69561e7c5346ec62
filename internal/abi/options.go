package abi

// DefaultMaxTotalAllocations is the default cap on memory handed out through
// allocate. It prevents unbounded growth of WASM linear memory.
const DefaultMaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// Option configures the memory manager.
type Option func(*config)

type config struct {
	maxTotalAllocations int
}

// WithMaxTotalAllocations sets the allocation cap. Non-positive values are
// ignored.
func WithMaxTotalAllocations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxTotalAllocations = n
		}
	}
}
