// Package ports defines the host capability surface the bridge talks to.
// The bridge depends only on these abstractions; the guest ABI, the
// reference host and test fakes implement them.
package ports
