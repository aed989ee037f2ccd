package pool

import "github.com/vkngwrapper/core/v2/common"

// PoolCreateFlags exposes options that change how a pool treats its memory
type PoolCreateFlags int32

var poolCreateFlagsMapping = common.NewFlagStringMapping[PoolCreateFlags]()

func (f PoolCreateFlags) Register(str string) {
	poolCreateFlagsMapping.Register(f, str)
}
func (f PoolCreateFlags) String() string {
	return poolCreateFlagsMapping.FlagsToString(f)
}

const (
	// PoolCreateLocked creates the pool in the locked state: every region is pinned into physical memory
	// as soon as it is acquired. This is the same as calling Pool.Lock immediately after New.
	PoolCreateLocked PoolCreateFlags = 1 << iota
	// PoolCreateUnchecked disables provenance and liveness tracking. Destroy trusts that every pointer it
	// receives came from Create on the same pool and has not already been destroyed. Passing any other
	// pointer corrupts the pool silently.
	//
	// This removes a linear scan over the pool's regions from every Destroy and the liveness bitset
	// from every region.
	PoolCreateUnchecked
)

func init() {
	PoolCreateLocked.Register("PoolCreateLocked")
	PoolCreateUnchecked.Register("PoolCreateUnchecked")
}

// PoolState is the lifecycle state of a pool, derived from its regions and free list
type PoolState int32

const (
	// PoolStateUnreserved indicates the pool has no regions
	PoolStateUnreserved PoolState = iota
	// PoolStateReserved indicates the pool has regions but no blocks have been carved from them
	PoolStateReserved
	// PoolStateUsable indicates at least one free block is available to Create
	PoolStateUsable
	// PoolStateFull indicates every carved block is handed out. Create will fail until Reserve or Destroy
	// is called.
	PoolStateFull
	// PoolStateDestroyed indicates the pool has been closed and its regions released
	PoolStateDestroyed
)

var poolStateMapping = map[PoolState]string{
	PoolStateUnreserved: "PoolStateUnreserved",
	PoolStateReserved:   "PoolStateReserved",
	PoolStateUsable:     "PoolStateUsable",
	PoolStateFull:       "PoolStateFull",
	PoolStateDestroyed:  "PoolStateDestroyed",
}

func (s PoolState) String() string {
	str, ok := poolStateMapping[s]
	if !ok {
		return "unknown"
	}
	return str
}
