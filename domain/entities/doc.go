// Package entities provides core domain entities for the module bridge.
// These types are shared by the extension-facing API, the guest ABI, and the
// reference host, and double as JSON wire format DTOs where noted.
package entities
