package memutils_test

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/blockpool/memutils"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "one"))
	require.NoError(t, memutils.CheckPow2(uint(4096), "page"))
	require.NoError(t, memutils.CheckPow2(uintptr(8), "align"))

	err := memutils.CheckPow2(12, "twelve")
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	require.Contains(t, err.Error(), "twelve is 12")

	require.True(t, errors.Is(memutils.CheckPow2(0, "zero"), memutils.PowerOfTwoError))
}

func TestAlign(t *testing.T) {
	require.Equal(t, 16, memutils.AlignUp(16, 8))
	require.Equal(t, 24, memutils.AlignUp(17, 8))
	require.Equal(t, 4096, memutils.AlignUp(1, 4096))
}

func TestRoundUp(t *testing.T) {
	require.Equal(t, 3000, memutils.RoundUp(2001, 1000))
	require.Equal(t, 2000, memutils.RoundUp(2000, 1000))
	require.Equal(t, 17, memutils.RoundUp(17, 0))
}

var blockSizeTestCases = map[string]struct {
	Size      uintptr
	Alignment uintptr
	Expected  int
}{
	"No Padding": {
		Size:      16,
		Alignment: 8,
		Expected:  16,
	},
	"Padded To Alignment": {
		Size:      12,
		Alignment: 8,
		Expected:  16,
	},
	"Zero Size Gets One Byte": {
		Size:      0,
		Alignment: 1,
		Expected:  1,
	},
	"Byte Array": {
		Size:      512,
		Alignment: 1,
		Expected:  512,
	},
	"Wide Alignment": {
		Size:      16,
		Alignment: 64,
		Expected:  64,
	},
}

func TestBlockSize(t *testing.T) {
	for name, testCase := range blockSizeTestCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Expected, memutils.BlockSize(testCase.Size, testCase.Alignment))
		})
	}
}

type flatStruct struct {
	A uint64
	B [4]int32
	C struct {
		D float64
		E bool
	}
}

type pointerStruct struct {
	A uint64
	B []byte
}

func TestHasPointers(t *testing.T) {
	require.False(t, memutils.HasPointers(reflect.TypeOf(int64(0))))
	require.False(t, memutils.HasPointers(reflect.TypeOf([512]byte{})))
	require.False(t, memutils.HasPointers(reflect.TypeOf(flatStruct{})))
	require.False(t, memutils.HasPointers(reflect.TypeOf([0]*int{})))

	require.True(t, memutils.HasPointers(reflect.TypeOf(pointerStruct{})))
	require.True(t, memutils.HasPointers(reflect.TypeOf("")))
	require.True(t, memutils.HasPointers(reflect.TypeOf(unsafe.Pointer(nil))))
	require.True(t, memutils.HasPointers(reflect.TypeOf([2]map[int]int{})))
	require.True(t, memutils.HasPointers(reflect.TypeOf((*any)(nil)).Elem()))
}
