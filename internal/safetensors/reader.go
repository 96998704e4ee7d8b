package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/born-ml/statedict/internal/tensor"
)

// MaxHeaderSize bounds the JSON header (100MB).
const MaxHeaderSize = 100 * 1024 * 1024

const metadataKey = "__metadata__"

// Errors returned while opening a file.
var (
	ErrFileTooSmall   = errors.New("file too small for a safetensors header")
	ErrHeaderTooLarge = errors.New("header exceeds maximum size")
	ErrClosed         = errors.New("reader is closed")
)

// TensorInfo describes a tensor in the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end)
}

// Header is the parsed JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON implements custom JSON unmarshaling for Header.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[metadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// Reader reads a memory-mapped SafeTensors file.
type Reader struct {
	path       string
	data       []byte // mapped file (read-only)
	release    func() error
	header     Header
	names      []string // ordered by data offset
	dataOffset int64
	closed     bool
}

// Open maps path read-only and parses its header.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() < 8 {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooSmall, stat.Size())
	}

	data, release, err := mapView(file, stat.Size())
	_ = file.Close() // the view does not need the descriptor
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	r := &Reader{path: path, data: data, release: release}
	if err := r.parseHeader(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// parseHeader reads and validates the header from the mapped region.
func (r *Reader) parseHeader() error {
	headerSize := binary.LittleEndian.Uint64(r.data[0:8])
	if headerSize > MaxHeaderSize {
		return fmt.Errorf("%w: %d", ErrHeaderTooLarge, headerSize)
	}

	headerEnd := 8 + int64(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize
	if headerEnd > int64(len(r.data)) {
		return fmt.Errorf("header extends beyond file: header_end=%d, file_size=%d", headerEnd, len(r.data))
	}

	if err := json.Unmarshal(r.data[8:headerEnd], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	r.dataOffset = headerEnd

	dataSize := int64(len(r.data)) - r.dataOffset
	for name, info := range r.header.Tensors {
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start || end > dataSize {
			return fmt.Errorf("invalid data offsets for tensor %s: [%d, %d] (data section is %d bytes)",
				name, start, end, dataSize)
		}
	}

	r.names = make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		r.names = append(r.names, name)
	}
	sort.Slice(r.names, func(i, j int) bool {
		a, b := r.header.Tensors[r.names[i]], r.header.Tensors[r.names[j]]
		if a.DataOffsets[0] != b.DataOffsets[0] {
			return a.DataOffsets[0] < b.DataOffsets[0]
		}
		return r.names[i] < r.names[j]
	})

	return nil
}

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in file order.
func (r *Reader) TensorNames() []string {
	return append([]string(nil), r.names...)
}

// TensorInfo returns information about a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData returns a copy of the raw bytes of a tensor.
func (r *Reader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start := r.dataOffset + info.DataOffsets[0]
	end := r.dataOffset + info.DataOffsets[1]

	// Copy out: the mapping does not outlive Close.
	return append([]byte(nil), r.data[start:end]...), nil
}

// LoadTensor materializes a tensor in host memory.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, err := info.DType.ToDataType()
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.FromBytes(tensor.Shape(info.Shape), dtype, data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// ReadStateDict materializes every tensor, in file order.
func (r *Reader) ReadStateDict() (*tensor.StateDict, error) {
	if r.closed {
		return nil, ErrClosed
	}

	sd := tensor.NewStateDict()
	for _, name := range r.names {
		raw, err := r.LoadTensor(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", name, err)
		}
		sd.Set(name, raw)
	}
	return sd, nil
}

// Close releases the mapping. Calling Close twice is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.data = nil
	return r.release()
}

// ReadFile opens path, materializes every tensor and releases the file, also when
// reading fails part way.
func ReadFile(path string) (sd *tensor.StateDict, metadata map[string]string, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	sd, err = r.ReadStateDict()
	if err != nil {
		return nil, nil, err
	}
	return sd, r.Metadata(), nil
}
