package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/statedict/internal/tensor"
)

const bornVersion = "0.5.4"

// Write encodes sd in .born format (v1 or v2) to w.
//
// The tensor list of header is replaced by the layout of sd; version,
// Born version and creation time are filled in when unset. The header is
// validated as strictly as ReadFile reads it, before anything reaches w.
func Write(w io.Writer, sd *tensor.StateDict, header Header, version uint32) error {
	if version != FormatVersion && version != FormatVersionV2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	header.FormatVersion = int(version)
	if header.BornVersion == "" {
		header.BornVersion = bornVersion
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}
	header.Tensors = tensorMetas(sd)

	var dataSize int64
	for _, meta := range header.Tensors {
		dataSize += meta.Size
	}
	if err := ValidateHeader(&header, dataSize, ValidationStrict); err != nil {
		return fmt.Errorf("refusing to write invalid header: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.IsCheckpoint() {
		flags |= FlagHasOptimizer
	}

	var fixed []byte
	if version == FormatVersion {
		fixed = make([]byte, FixedHeaderSizeV1)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		binary.LittleEndian.PutUint64(fixed[12:20], uint64(len(headerJSON)))
	} else {
		// 0x00 magic, 0x04 version, 0x08 flags, 0x0C reserved,
		// 0x10 header size, 0x18 data size, 0x20 SHA-256 of the data section.
		fixed = make([]byte, FixedHeaderSizeV2)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], FormatVersionV2)
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
		binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize)) //nolint:gosec // G115: sizes are non-negative
		digest := dataDigest(sd)
		copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], digest)
	}

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	headerEnd := int64(len(fixed) + len(headerJSON))
	if padding := alignedDataOffset(headerEnd) - headerEnd; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for name, raw := range sd.All() {
		if _, err := w.Write(raw.Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

// dataDigest is the SHA-256 of the data section sd lays out, computed
// tensor by tensor without assembling the section.
func dataDigest(sd *tensor.StateDict) []byte {
	h := sha256.New()
	for _, raw := range sd.All() {
		h.Write(raw.Data())
	}
	return h.Sum(nil)
}

// WriteFile writes sd to a new .born file at path. A partially written file
// is removed when encoding fails.
func WriteFile(path string, sd *tensor.StateDict, header Header, version uint32) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return Write(file, sd, header, version)
}
