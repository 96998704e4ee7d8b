// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types used by statedict:
// host-memory tensors, shapes, data types and ordered state dicts.
//
// Example:
//
//	w, _ := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
//	sd := tensor.NewStateDict()
//	sd.Set("fc.weight", w)
package tensor

import (
	"github.com/born-ml/statedict/internal/tensor"
)

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Uint8    DataType = tensor.Uint8
	Bool     DataType = tensor.Bool
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Vulkan Device = tensor.Vulkan
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is a tensor held as raw little-endian bytes.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Typed views via AsFloat32(), AsInt64(), etc.
//   - Float32s() and HeadFloat32s(n) decoding any element type, including float16 and bfloat16
type RawTensor = tensor.RawTensor

// StateDict is an ordered mapping from parameter names to tensors.
type StateDict = tensor.StateDict

// ParseDataType parses a data type name such as "float32" or "bfloat16".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// NewRaw allocates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromBytes creates a CPU tensor that takes ownership of data.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// FromFloat32 creates a float32 CPU tensor holding a copy of values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	return tensor.FromFloat32(shape, values)
}

// NewStateDict creates an empty state dict.
func NewStateDict() *StateDict {
	return tensor.NewStateDict()
}

// StateDictFromMap builds a state dict from a map, with names sorted.
func StateDictFromMap(m map[string]*RawTensor) *StateDict {
	return tensor.StateDictFromMap(m)
}
