package checkpoint

import (
	"path/filepath"
	"strings"
)

// Format identifies an on-disk checkpoint encoding.
type Format int

// Supported checkpoint formats.
const (
	FormatBorn Format = iota
	FormatSafeTensors
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatSafeTensors:
		return "SafeTensors"
	default:
		return "Born"
	}
}

// DetectFormat picks the format from the file extension.
// Anything that is not .safetensors is decoded as a .born checkpoint.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".safetensors") {
		return FormatSafeTensors
	}
	return FormatBorn
}
