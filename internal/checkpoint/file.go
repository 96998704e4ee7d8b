package checkpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/statedict/internal/safetensors"
	"github.com/born-ml/statedict/internal/serialization"
	"github.com/born-ml/statedict/internal/tensor"
)

// Metadata keys of a decoded .born training checkpoint.
const (
	MetaEpoch           = "epoch"
	MetaStep            = "step"
	MetaLoss            = "loss"
	MetaOptimizerType   = "optimizer_type"
	MetaOptimizerConfig = "optimizer_config"
	MetaTrainingMeta    = "training_meta"
	MetaModelType       = "model_type"
)

// Errors returned by file resolution.
var (
	ErrEmptyPath      = errors.New("empty checkpoint path")
	ErrNotBornFile    = errors.New("training checkpoints can only be written as .born")
	ErrMissingTensors = errors.New("container has no tensors")
)

// ReadFile decodes the checkpoint at path.
//
// SafeTensors files and plain .born files decode to a flat container with
// their string metadata in Meta. A .born training checkpoint decodes to
// {"state_dict": model, "optimizer": optimizer state} plus epoch, step, loss
// and the optimizer settings in Meta.
func ReadFile(path string) (*Container, error) {
	switch DetectFormat(path) {
	case FormatSafeTensors:
		return readSafeTensors(path)
	default:
		return readBorn(path)
	}
}

func readSafeTensors(path string) (*Container, error) {
	sd, metadata, err := safetensors.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := NewContainer(sd)
	c.Meta = stringMeta(metadata)
	return c, nil
}

func readBorn(path string) (*Container, error) {
	sd, header, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}

	meta := stringMeta(header.Metadata)
	if header.ModelType != "" {
		meta[MetaModelType] = header.ModelType
	}

	if !header.IsCheckpoint() {
		c := NewContainer(sd)
		c.Meta = meta
		return c, nil
	}

	model := tensor.NewStateDict()
	optimizer := tensor.NewStateDict()
	for name, raw := range sd.All() {
		if rest, ok := strings.CutPrefix(name, serialization.OptimizerPrefix); ok {
			optimizer.Set(rest, raw)
			continue
		}
		model.Set(name, raw)
	}

	cm := header.CheckpointMeta
	meta[MetaEpoch] = cm.Epoch
	meta[MetaStep] = cm.Step
	meta[MetaLoss] = cm.Loss
	if cm.OptimizerType != "" {
		meta[MetaOptimizerType] = cm.OptimizerType
	}
	if cm.OptimizerConfig != nil {
		meta[MetaOptimizerConfig] = cm.OptimizerConfig
	}
	if cm.TrainingMeta != nil {
		meta[MetaTrainingMeta] = cm.TrainingMeta
	}

	c := &Container{
		Tensors:  tensor.NewStateDict(),
		Children: map[string]*Container{StateDictKey: NewContainer(model)},
		Meta:     meta,
	}
	if optimizer.Len() > 0 {
		c.Children[OptimizerKey] = NewContainer(optimizer)
	}
	return c, nil
}

// WriteFile writes sd to path, choosing the encoding by extension.
// .born files are written in format version 2.
func WriteFile(path string, sd *tensor.StateDict, metadata map[string]string) error {
	if path == "" {
		return ErrEmptyPath
	}
	switch DetectFormat(path) {
	case FormatSafeTensors:
		return safetensors.WriteFile(path, sd, metadata)
	default:
		return serialization.WriteFile(path, sd, serialization.Header{Metadata: metadata}, serialization.FormatVersionV2)
	}
}

// WriteCheckpoint writes c as a .born training checkpoint. It is the
// inverse of ReadFile for checkpoints: the "state_dict" child (or the
// top-level tensors) become the model tensors, the "optimizer" child is
// stored under the optimizer prefix and the well-known Meta keys fill the
// checkpoint header. Remaining string Meta values become file metadata.
func WriteCheckpoint(path string, c *Container) error {
	if path == "" {
		return ErrEmptyPath
	}
	if DetectFormat(path) != FormatBorn {
		return fmt.Errorf("%w: %s", ErrNotBornFile, path)
	}
	if c == nil {
		return ErrMissingTensors
	}

	sd := tensor.NewStateDict()
	for name, raw := range c.StateDict().All() {
		sd.Set(name, raw)
	}
	if opt, ok := c.Child(OptimizerKey); ok {
		for name, raw := range opt.Tensors.All() {
			sd.Set(serialization.OptimizerPrefix+name, raw)
		}
	}

	cm := &serialization.CheckpointMeta{IsCheckpoint: true}
	header := serialization.Header{
		Metadata:       make(map[string]string),
		CheckpointMeta: cm,
	}
	for key, value := range c.Meta {
		switch key {
		case MetaEpoch:
			cm.Epoch = int(toInt64(value))
		case MetaStep:
			cm.Step = toInt64(value)
		case MetaLoss:
			cm.Loss = toFloat64(value)
		case MetaOptimizerType:
			cm.OptimizerType, _ = value.(string)
		case MetaOptimizerConfig:
			cm.OptimizerConfig, _ = value.(map[string]any)
		case MetaTrainingMeta:
			cm.TrainingMeta, _ = value.(map[string]any)
		case MetaModelType:
			header.ModelType, _ = value.(string)
		default:
			if s, ok := value.(string); ok {
				header.Metadata[key] = s
			}
		}
	}

	return serialization.WriteFile(path, sd, header, serialization.FormatVersionV2)
}

func stringMeta(m map[string]string) map[string]any {
	meta := make(map[string]any, len(m))
	for k, v := range m {
		meta[k] = v
	}
	return meta
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
