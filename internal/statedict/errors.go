package statedict

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors.
var (
	ErrNilModel            = errors.New("statedict: nil model")
	ErrShapeOrNameMismatch = errors.New("statedict: shape or name mismatch")
)

// LoadError reports a checkpoint source that could not be read or decoded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load checkpoint %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// MismatchError reports names that prevented a strict assignment.
type MismatchError struct {
	Missing     []string
	SizeNotSame []string
	Unexpected  []string
}

func (e *MismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing keys: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.SizeNotSame) > 0 {
		parts = append(parts, fmt.Sprintf("size mismatch: %s", strings.Join(e.SizeNotSame, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected keys: %s", strings.Join(e.Unexpected, ", ")))
	}
	if len(parts) == 0 {
		return ErrShapeOrNameMismatch.Error()
	}
	return ErrShapeOrNameMismatch.Error() + ": " + strings.Join(parts, "; ")
}

// Is matches ErrShapeOrNameMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrShapeOrNameMismatch
}

func (e *MismatchError) empty() bool {
	return len(e.Missing) == 0 && len(e.SizeNotSame) == 0 && len(e.Unexpected) == 0
}
