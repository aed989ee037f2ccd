// Package platform supplies the raw memory regions that block pools carve up. A Provider hands out
// zeroed, aligned regions, takes them back, and optionally pins them in physical memory.
package platform

//go:generate mockgen -source=provider.go -destination=mocks/provider.go

import "unsafe"

// Provider is the source of coarse memory regions for a pool. Implementations are not required to
// be safe for concurrent use.
type Provider interface {
	// Allocate reserves and commits size bytes of zeroed memory and returns its base address. When
	// the request cannot be satisfied, the returned error wraps memutils.ErrOutOfMemory.
	Allocate(size int) (unsafe.Pointer, error)
	// Release returns a region obtained from Allocate. Releasing an address that is not a live region
	// returns an error.
	Release(base unsafe.Pointer) error
	// Pin asks that the region be kept resident in physical memory. This is a best-effort request and
	// callers are expected to tolerate failure.
	Pin(base unsafe.Pointer, size int) error
	// PageGranularity is the minimum allocation unit of the provider, in bytes
	PageGranularity() int
}

// Counters reports how a provider has been used over its lifetime
type Counters struct {
	Allocations int
	Releases    int
	Pins        int
	Unpins      int
	LiveRegions int
	LiveBytes   int
}
