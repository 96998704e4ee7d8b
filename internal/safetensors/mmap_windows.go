//go:build windows

package safetensors

import (
	"os"
	"syscall"
	"unsafe"
)

// mapView returns a read-only view of the first size bytes of f and the
// function that releases it. The view keeps the mapping alive after both
// the mapping handle and f are closed.
func mapView(f *os.File, size int64) ([]byte, func() error, error) {
	high, low := uint32(uint64(size)>>32), uint32(size) //nolint:gosec // G115: split into DWORDs
	mapping, err := syscall.CreateFileMapping(syscall.Handle(f.Fd()), nil, syscall.PAGE_READONLY, high, low, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = syscall.CloseHandle(mapping) }()

	addr, err := syscall.MapViewOfFile(mapping, syscall.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}

	//nolint:gosec // G103: addr is a read-only view of exactly size bytes
	view := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	return view, func() error { return syscall.UnmapViewOfFile(addr) }, nil
}
