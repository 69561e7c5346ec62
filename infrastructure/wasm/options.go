package wasm

import "github.com/reglet-dev/modbridge/internal/abi"

// Option configures the guest allocator.
type Option = abi.Option

// WithMaxAllocations caps the guest memory the host may hold through
// allocate at once.
func WithMaxAllocations(bytes int) Option {
	return abi.WithMaxTotalAllocations(bytes)
}
