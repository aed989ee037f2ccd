//go:build !unix && !windows

package platform

import (
	"os"

	"github.com/pkg/errors"
)

var errPinUnsupported = errors.New("pinning memory is not supported on this platform")

// Without a virtual memory API, regions come from the Go heap.
func reserve(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func release(data []byte) error {
	return nil
}

func pin(data []byte) error {
	return errPinUnsupported
}

func unpin(data []byte) error {
	return errPinUnsupported
}

func pageSize() int {
	return os.Getpagesize()
}
