package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/x448/float16"
)

// Device represents the compute device a tensor was produced on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a dense, row-major byte
// buffer plus shape and dtype.
type RawTensor struct {
	data   []byte
	shape  Shape
	dtype  DataType
	device Device
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zeroed.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		dtype:  dtype,
		device: device,
	}, nil
}

// FromBytes creates a CPU tensor that takes ownership of data.
// len(data) must equal shape.NumElements() * dtype.Size().
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.NumElements() * dtype.Size(); len(data) != want {
		return nil, fmt.Errorf("data size mismatch for %s%s: got %d bytes, want %d",
			dtype, shape, len(data), want)
	}

	return &RawTensor{
		data:   data,
		shape:  shape.Clone(),
		dtype:  dtype,
		device: CPU,
	}, nil
}

// FromFloat32 creates a float32 CPU tensor holding a copy of values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %s", len(values), shape)
	}
	copy(raw.AsFloat32(), values)
	return raw, nil
}

// Shape returns the tensor's shape. A nil tensor has no shape.
func (r *RawTensor) Shape() Shape {
	if r == nil {
		return nil
	}
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.data
}

// Float32s decodes the tensor into a fresh []float32 regardless of its dtype.
// Half precision values are widened; bool becomes 0/1.
// Data is little-endian, as in every supported file format.
func (r *RawTensor) Float32s() []float32 {
	return r.HeadFloat32s(r.NumElements())
}

// HeadFloat32s decodes only the first n elements, or all of them when the
// tensor is smaller.
func (r *RawTensor) HeadFloat32s(n int) []float32 {
	n = max(0, min(n, r.NumElements()))
	out := make([]float32, n)
	d := r.data
	for i := range n {
		switch r.dtype {
		case Float32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(d[i*4:]))
		case Float64:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(d[i*8:])))
		case Int32:
			out[i] = float32(int32(binary.LittleEndian.Uint32(d[i*4:]))) //nolint:gosec // G115: reinterpretation
		case Int64:
			out[i] = float32(int64(binary.LittleEndian.Uint64(d[i*8:]))) //nolint:gosec // G115: reinterpretation
		case Uint8, Bool:
			out[i] = float32(d[i])
		case Float16:
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(d[i*2:])).Float32()
		case BFloat16:
			// bfloat16 is the upper half of an IEEE float32.
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(d[i*2:])) << 16)
		}
	}
	return out
}

// Clone returns a deep copy of the tensor on the same device.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:   append([]byte(nil), r.data...),
		shape:  r.shape.Clone(),
		dtype:  r.dtype,
		device: r.device,
	}
}

// ToCPU returns the tensor placed in host memory. CPU tensors are returned as is;
// tensors tagged with another device are copied.
func (r *RawTensor) ToCPU() *RawTensor {
	if r.device == CPU {
		return r
	}
	c := r.Clone()
	c.device = CPU
	return c
}

// String describes the tensor without its data, e.g. "float32(2, 3)".
func (r *RawTensor) String() string {
	return r.dtype.String() + r.shape.String()
}
