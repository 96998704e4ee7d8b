package checkpoint

import (
	"fmt"

	"github.com/born-ml/statedict/internal/tensor"
)

// SourceKind tags the variant held by a Source.
type SourceKind int

// Source variants.
const (
	KindStateDict SourceKind = iota
	KindContainer
	KindFile
)

// String returns the variant name.
func (k SourceKind) String() string {
	switch k {
	case KindStateDict:
		return "state_dict"
	case KindContainer:
		return "container"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Source is where a checkpoint comes from. Exactly one variant is set;
// build it with FromStateDict, FromContainer or FromFile.
type Source struct {
	kind      SourceKind
	stateDict *tensor.StateDict
	container *Container
	path      string
}

// FromStateDict uses an in-memory flat mapping.
func FromStateDict(sd *tensor.StateDict) Source {
	return Source{kind: KindStateDict, stateDict: sd}
}

// FromContainer uses an in-memory nested checkpoint.
func FromContainer(c *Container) Source {
	return Source{kind: KindContainer, container: c}
}

// FromFile reads the checkpoint at path. The format follows DetectFormat.
func FromFile(path string) Source {
	return Source{kind: KindFile, path: path}
}

// Kind returns the variant tag.
func (s Source) Kind() SourceKind {
	return s.kind
}

// Path returns the file path of a KindFile source and "" otherwise.
func (s Source) Path() string {
	return s.path
}

// String identifies the source in logs and errors.
func (s Source) String() string {
	switch s.kind {
	case KindFile:
		return s.path
	case KindContainer:
		return "<container>"
	default:
		return "<state_dict>"
	}
}

// Resolve materializes the source as a host-memory Container.
// In-memory inputs are copied, never mutated.
func (s Source) Resolve() (*Container, error) {
	switch s.kind {
	case KindStateDict:
		return NewContainer(hostStateDict(s.stateDict)), nil
	case KindContainer:
		return s.container.hostCopy(), nil
	case KindFile:
		if s.path == "" {
			return nil, ErrEmptyPath
		}
		return ReadFile(s.path)
	default:
		return nil, fmt.Errorf("unknown source kind %v", s.kind)
	}
}
