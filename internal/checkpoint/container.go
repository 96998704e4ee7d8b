package checkpoint

import (
	"maps"

	"github.com/born-ml/statedict/internal/tensor"
)

// StateDictKey is the child name under which framework-saved checkpoints
// nest the model tensors next to training metadata.
const StateDictKey = "state_dict"

// OptimizerKey is the child name holding optimizer state in decoded .born checkpoints.
const OptimizerKey = "optimizer"

// Container is a decoded checkpoint: top-level tensors, nested child
// containers and non-tensor metadata.
type Container struct {
	Tensors  *tensor.StateDict
	Children map[string]*Container
	Meta     map[string]any
}

// NewContainer wraps sd in a flat container.
func NewContainer(sd *tensor.StateDict) *Container {
	if sd == nil {
		sd = tensor.NewStateDict()
	}
	return &Container{Tensors: sd}
}

// Child returns the nested container stored under name.
func (c *Container) Child(name string) (*Container, bool) {
	if c == nil || c.Children == nil {
		return nil, false
	}
	child, ok := c.Children[name]
	return child, ok && child != nil
}

// StateDict returns the tensors to reconcile. A child under "state_dict"
// takes precedence over the top-level tensors; only one level is unwrapped.
func (c *Container) StateDict() *tensor.StateDict {
	if c == nil {
		return tensor.NewStateDict()
	}
	if child, ok := c.Child(StateDictKey); ok {
		if child.Tensors == nil {
			return tensor.NewStateDict()
		}
		return child.Tensors
	}
	if c.Tensors == nil {
		return tensor.NewStateDict()
	}
	return c.Tensors
}

// hostCopy returns a copy of c whose tensors all live in host memory.
func (c *Container) hostCopy() *Container {
	if c == nil {
		return NewContainer(nil)
	}

	out := &Container{
		Tensors: hostStateDict(c.Tensors),
		Meta:    maps.Clone(c.Meta),
	}
	if len(c.Children) > 0 {
		out.Children = make(map[string]*Container, len(c.Children))
		for name, child := range c.Children {
			out.Children[name] = child.hostCopy()
		}
	}
	return out
}

func hostStateDict(sd *tensor.StateDict) *tensor.StateDict {
	out := tensor.NewStateDict()
	for name, raw := range sd.All() {
		if raw == nil {
			continue
		}
		out.Set(name, raw.ToCPU())
	}
	return out
}
