package memutils

import (
	"reflect"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// RoundUp rounds value up to the next multiple of unit, which does not need to be a power of two.
func RoundUp(value, unit int) int {
	if unit <= 0 {
		return value
	}
	return ((value + unit - 1) / unit) * unit
}

// BlockSize returns the size in bytes of a single fixed-size block holding an object of the
// provided size and alignment. Zero-sized objects still occupy one byte so every block has a
// distinct address. alignment must be a power of two.
func BlockSize(size, alignment uintptr) int {
	if size == 0 {
		size = 1
	}
	return AlignUp(int(size), uint(alignment))
}

// HasPointers reports whether values of the provided type contain anything the garbage collector
// would need to trace. Such values cannot live in memory the collector does not scan.
func HasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && HasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if HasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
