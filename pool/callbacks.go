package pool

import "unsafe"

// AllocateRegionCallback is called after a pool acquires a new region from its memory provider
type AllocateRegionCallback func(
	base unsafe.Pointer,
	size int,
	userData interface{},
)

// FreeRegionCallback is called before a pool releases a region back to its memory provider
type FreeRegionCallback func(
	base unsafe.Pointer,
	size int,
	userData interface{},
)

// RegionCallbackOptions is an optional set of callbacks that are executed as a pool acquires and
// releases regions. Regions do not map 1:1 with blocks, so these are not called for every Create.
type RegionCallbackOptions struct {
	Allocate AllocateRegionCallback
	Free     FreeRegionCallback
	UserData interface{}
}

type regionCallbacks struct {
	Callbacks *RegionCallbackOptions
}

func (c *regionCallbacks) Allocate(base unsafe.Pointer, size int) {
	if c.Callbacks != nil && c.Callbacks.Allocate != nil {
		c.Callbacks.Allocate(base, size, c.Callbacks.UserData)
	}
}

func (c *regionCallbacks) Free(base unsafe.Pointer, size int) {
	if c.Callbacks != nil && c.Callbacks.Free != nil {
		c.Callbacks.Free(base, size, c.Callbacks.UserData)
	}
}
