//go:build debug_mem_utils

package pool_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/pool"
)

func TestPool_WriteAfterDestroyIsDetected(t *testing.T) {
	p, err := pool.New[block16](nil, pool.CreateOptions{Strategy: pool.StrategyHeapBacked, InitialReserve: 2})
	require.NoError(t, err)
	defer requireClose(t, p)

	block, err := p.Create()
	require.NoError(t, err)
	require.NoError(t, p.Destroy(block))

	block.B = 12

	_, err = p.Create()
	require.True(t, errors.Is(err, memutils.ErrBlockCorrupted))
	require.Equal(t, 2, p.FreeCount())
	require.Equal(t, 0, p.AllocatedCount())
}
