package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/statedict/internal/tensor"
)

// headerAlignment pads the JSON header with spaces so the data section starts
// on an 8-byte boundary.
const headerAlignment = 8

// Write encodes sd to w. Tensors are laid out in state dict order.
func Write(w io.Writer, sd *tensor.StateDict, metadata map[string]string) error {
	header := make(map[string]any, sd.Len()+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for name, raw := range sd.All() {
		dtype, err := FromDataType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		size := int64(raw.ByteSize())
		header[name] = TensorInfo{
			DType:       dtype,
			Shape:       append([]int{}, raw.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := (headerAlignment - (8+len(headerJSON))%headerAlignment) % headerAlignment; pad > 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for name, raw := range sd.All() {
		if _, err := w.Write(raw.Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// WriteFile writes sd to a new file at path.
func WriteFile(path string, sd *tensor.StateDict, metadata map[string]string) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return Write(file, sd, metadata)
}
