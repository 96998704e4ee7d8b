package serialization

import (
	"time"

	"github.com/born-ml/statedict/internal/tensor"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersion     = 1    // v1: Basic format without checksum
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Align tensor data to 64 bytes
	FixedHeaderSizeV1 = 20   // magic + version + flags + header size
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// OptimizerPrefix prefixes optimizer state names inside checkpoint files.
const OptimizerPrefix = "optimizer."

// Flags for the .born format.
const (
	FlagCompressed   uint32 = 1 << 0 // bit 0: gzip compression (reserved)
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	BornVersion    string            `json:"born_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// IsCheckpoint reports whether the file holds a training checkpoint.
func (h *Header) IsCheckpoint() bool {
	return h.CheckpointMeta != nil && h.CheckpointMeta.IsCheckpoint
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint    bool           `json:"is_checkpoint"`
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
	TrainingMeta    map[string]any `json:"training_meta"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "layer.0.weight")
	DType  string `json:"dtype"`  // Data type (e.g., "float32", "float16")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// tensorMetas lays sd out contiguously in state dict order.
func tensorMetas(sd *tensor.StateDict) []TensorMeta {
	metas := make([]TensorMeta, 0, sd.Len())
	var offset int64
	for name, raw := range sd.All() {
		size := int64(raw.ByteSize())
		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  append([]int{}, raw.Shape()...),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	return metas
}

// alignedDataOffset returns the start of the data section for a header ending at pos.
func alignedDataOffset(pos int64) int64 {
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
