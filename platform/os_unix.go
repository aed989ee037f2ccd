//go:build unix

package platform

import "golang.org/x/sys/unix"

func reserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func release(data []byte) error {
	return unix.Munmap(data)
}

func pin(data []byte) error {
	return unix.Mlock(data)
}

func unpin(data []byte) error {
	return unix.Munlock(data)
}

func pageSize() int {
	return unix.Getpagesize()
}
