package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/statedict/internal/tensor"
)

// BornReader reads tensors from a .born file or an in-memory .born stream.
type BornReader struct {
	src        io.ReaderAt
	closer     io.Closer
	size       int64
	header     Header
	flags      uint32
	version    uint32
	dataOffset int64    // Offset where tensor data starts
	dataSize   int64    // Size of the data section
	checksum   [32]byte // SHA-256 checksum (v2 only)
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures the behavior of BornReader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// NewBornReader creates a new .born file reader with strict validation.
func NewBornReader(path string) (*BornReader, error) {
	return NewBornReaderWithOptions(path, ReaderOptions{
		ValidationLevel: ValidationStrict,
	})
}

// NewBornReaderWithOptions creates a new .born file reader with custom options.
func NewBornReaderWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	reader, err := newReader(file, fileInfo.Size(), opts)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// ReadFrom decodes a complete .born stream held in r with strict validation.
func ReadFrom(r io.Reader) (*tensor.StateDict, Header, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read stream: %w", err)
	}

	reader, err := newReader(bytes.NewReader(data), int64(len(data)), ReaderOptions{
		ValidationLevel: ValidationStrict,
	})
	if err != nil {
		return nil, Header{}, err
	}
	defer reader.Close()

	sd, err := reader.ReadStateDict()
	if err != nil {
		return nil, Header{}, err
	}
	return sd, reader.Header(), nil
}

func newReader(src io.ReaderAt, size int64, opts ReaderOptions) (*BornReader, error) {
	reader := &BornReader{src: src, size: size, opts: opts}

	if err := reader.parseHeader(); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if reader.version == FormatVersion {
		reader.dataSize = size - reader.dataOffset
	}
	if reader.dataOffset+reader.dataSize > size {
		return nil, fmt.Errorf("%w: data section ends at %d, file size %d",
			ErrOutOfBounds, reader.dataOffset+reader.dataSize, size)
	}

	if err := ValidateHeader(&reader.header, reader.dataSize, opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if reader.version == FormatVersionV2 && !opts.SkipChecksumValidation {
		if err := reader.verifyChecksum(); err != nil {
			return nil, err
		}
	}

	return reader, nil
}

// parseHeader reads the fixed header and the JSON header.
func (r *BornReader) parseHeader() error {
	in := io.NewSectionReader(r.src, 0, r.size)

	prefix := make([]byte, 8)
	if _, err := io.ReadFull(in, prefix); err != nil {
		return fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(prefix[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	r.version = binary.LittleEndian.Uint32(prefix[4:8])

	var fixedSize int
	switch r.version {
	case FormatVersion:
		fixedSize = FixedHeaderSizeV1
	case FormatVersionV2:
		fixedSize = FixedHeaderSizeV2
	default:
		return fmt.Errorf("%w: got %d, expected %d or %d", ErrUnsupportedVersion, r.version, FormatVersion, FormatVersionV2)
	}

	fixed := make([]byte, fixedSize)
	copy(fixed, prefix)
	if _, err := io.ReadFull(in, fixed[8:]); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[8:12])

	var headerSize uint64
	if r.version == FormatVersion {
		headerSize = binary.LittleEndian.Uint64(fixed[12:20])
	} else {
		headerSize = binary.LittleEndian.Uint64(fixed[16:24])
		dataSize := binary.LittleEndian.Uint64(fixed[24:32])
		if dataSize > 1<<62 {
			return fmt.Errorf("data size too large: %d", dataSize)
		}
		r.dataSize = int64(dataSize)
		copy(r.checksum[:], fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])
	}

	if headerSize > MaxHeaderSize || int64(headerSize) > r.size {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	r.dataOffset = alignedDataOffset(int64(fixedSize) + int64(headerSize))
	return nil
}

// verifyChecksum hashes the data section and compares it with the v2 header.
func (r *BornReader) verifyChecksum() error {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r.src, r.dataOffset, r.dataSize)); err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), r.checksum[:]) {
		return ErrChecksumMismatch
	}
	return nil
}

// Header returns the file header.
func (r *BornReader) Header() Header {
	return r.header
}

// Version returns the format version (1 or 2).
func (r *BornReader) Version() uint32 {
	return r.version
}

// Flags returns the flags bitfield.
func (r *BornReader) Flags() uint32 {
	return r.flags
}

// Metadata returns the metadata map from the header.
func (r *BornReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in file order.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("tensor %s not found", name)
}

// ReadTensorData reads raw tensor data for a given tensor name.
func (r *BornReader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	return r.readAt(meta)
}

func (r *BornReader) readAt(meta *TensorMeta) ([]byte, error) {
	data := make([]byte, meta.Size)
	if _, err := r.src.ReadAt(data, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor loads a single tensor into host memory.
func (r *BornReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, err := tensor.ParseDataType(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	data, err := r.readAt(meta)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.FromBytes(tensor.Shape(meta.Shape), dtype, data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// ReadStateDict reads all tensors, in file order.
func (r *BornReader) ReadStateDict() (*tensor.StateDict, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}

	sd := tensor.NewStateDict()
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		sd.Set(meta.Name, raw)
	}
	return sd, nil
}

// Close closes the reader and the underlying file.
func (r *BornReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadFile reads every tensor of a .born file with strict validation and
// closes the file on all paths.
func ReadFile(path string) (sd *tensor.StateDict, header Header, err error) {
	reader, err := NewBornReader(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	sd, err = reader.ReadStateDict()
	if err != nil {
		return nil, Header{}, err
	}
	return sd, reader.Header(), nil
}
