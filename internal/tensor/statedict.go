package tensor

import (
	"iter"
	"slices"
	"sort"
)

// StateDict is an ordered mapping from parameter names to tensors.
//
// Names enumerate in insertion order. Replacing an existing name keeps its
// position. The zero value is not usable; use NewStateDict.
type StateDict struct {
	names   []string
	tensors map[string]*RawTensor
}

// NewStateDict creates an empty state dictionary.
func NewStateDict() *StateDict {
	return &StateDict{tensors: make(map[string]*RawTensor)}
}

// StateDictFromMap builds a state dictionary from a plain map.
// Go maps are unordered, so names are sorted.
func StateDictFromMap(m map[string]*RawTensor) *StateDict {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	sd := NewStateDict()
	for _, name := range names {
		sd.Set(name, m[name])
	}
	return sd
}

// Set stores t under name.
func (d *StateDict) Set(name string, t *RawTensor) {
	if _, ok := d.tensors[name]; !ok {
		d.names = append(d.names, name)
	}
	d.tensors[name] = t
}

// Get returns the tensor stored under name.
func (d *StateDict) Get(name string) (*RawTensor, bool) {
	if d == nil {
		return nil, false
	}
	t, ok := d.tensors[name]
	return t, ok
}

// Has reports whether name is present.
func (d *StateDict) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// Delete removes name. Deleting an absent name is a no-op.
func (d *StateDict) Delete(name string) {
	if _, ok := d.tensors[name]; !ok {
		return
	}
	delete(d.tensors, name)
	d.names = slices.DeleteFunc(d.names, func(n string) bool { return n == name })
}

// Len returns the number of entries.
func (d *StateDict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns the names in enumeration order. The slice is a copy.
func (d *StateDict) Names() []string {
	if d == nil {
		return nil
	}
	return slices.Clone(d.names)
}

// All iterates over entries in enumeration order.
func (d *StateDict) All() iter.Seq2[string, *RawTensor] {
	return func(yield func(string, *RawTensor) bool) {
		if d == nil {
			return
		}
		for _, name := range d.names {
			if !yield(name, d.tensors[name]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy: a new dictionary sharing the same tensors.
func (d *StateDict) Clone() *StateDict {
	c := NewStateDict()
	for name, t := range d.All() {
		c.Set(name, t)
	}
	return c
}

// ByteSize returns the total tensor payload in bytes.
func (d *StateDict) ByteSize() int64 {
	var n int64
	for _, t := range d.All() {
		n += int64(t.ByteSize())
	}
	return n
}
