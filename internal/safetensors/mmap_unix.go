//go:build unix

package safetensors

import (
	"fmt"
	"os"
	"syscall"
)

// mapView returns a read-only shared view of the first size bytes of f and
// the function that releases it. The view stays valid after f is closed.
func mapView(f *os.File, size int64) ([]byte, func() error, error) {
	if int64(int(size)) != size {
		return nil, nil, fmt.Errorf("file of %d bytes cannot be mapped", size)
	}
	fd := int(f.Fd()) //nolint:gosec // G115: descriptors fit in int
	view, err := syscall.Mmap(fd, 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return view, func() error { return syscall.Munmap(view) }, nil
}
