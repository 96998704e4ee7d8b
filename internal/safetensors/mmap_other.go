//go:build !unix && !windows

package safetensors

import (
	"io"
	"os"
)

// mapView reads the file into memory where mapping is unavailable.
func mapView(f *os.File, size int64) ([]byte, func() error, error) {
	view := make([]byte, size)
	if _, err := io.ReadFull(f, view); err != nil {
		return nil, nil, err
	}
	return view, func() error { return nil }, nil
}
