package safetensors

import (
	"fmt"

	"github.com/born-ml/statedict/internal/tensor"
)

// DType is a SafeTensors dtype string.
type DType string

// Supported SafeTensors dtypes.
const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	F64  DType = "F64"
	I32  DType = "I32"
	I64  DType = "I64"
	U8   DType = "U8"
	Bool DType = "BOOL"
)

// ToDataType converts a SafeTensors dtype to a tensor.DataType.
func (d DType) ToDataType() (tensor.DataType, error) {
	switch d {
	case F16:
		return tensor.Float16, nil
	case BF16:
		return tensor.BFloat16, nil
	case F32:
		return tensor.Float32, nil
	case F64:
		return tensor.Float64, nil
	case I32:
		return tensor.Int32, nil
	case I64:
		return tensor.Int64, nil
	case U8:
		return tensor.Uint8, nil
	case Bool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", d)
	}
}

// FromDataType converts a tensor.DataType to its SafeTensors dtype.
func FromDataType(dt tensor.DataType) (DType, error) {
	switch dt {
	case tensor.Float16:
		return F16, nil
	case tensor.BFloat16:
		return BF16, nil
	case tensor.Float32:
		return F32, nil
	case tensor.Float64:
		return F64, nil
	case tensor.Int32:
		return I32, nil
	case tensor.Int64:
		return I64, nil
	case tensor.Uint8:
		return U8, nil
	case tensor.Bool:
		return Bool, nil
	default:
		return "", fmt.Errorf("no safetensors dtype for %s", dt)
	}
}
