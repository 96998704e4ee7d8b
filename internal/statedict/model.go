package statedict

import (
	"github.com/born-ml/statedict/internal/tensor"
)

// Model is the target of a load: it exposes its named tensors and accepts
// replacements for a subset of them.
type Model interface {
	// StateDict returns the current name -> tensor state in the model's
	// natural order. The reconciler only reads it.
	StateDict() *tensor.StateDict

	// LoadStateDict overwrites the named tensors. With strict set, every
	// expected name must be supplied and no others may be present.
	LoadStateDict(sd *tensor.StateDict, strict bool) error
}

// Module is an in-memory Model backed by a StateDict.
type Module struct {
	state *tensor.StateDict
}

// NewModule creates a module whose expected names and shapes are those of sd.
func NewModule(sd *tensor.StateDict) *Module {
	if sd == nil {
		sd = tensor.NewStateDict()
	}
	return &Module{state: sd}
}

// StateDict returns the live state.
func (m *Module) StateDict() *tensor.StateDict {
	return m.state
}

// LoadStateDict replaces the named tensors of m.
//
// Shape mismatches are always rejected. In strict mode missing and
// unexpected names are rejected too; otherwise unexpected names are ignored.
// Nothing is written unless the whole load is accepted.
func (m *Module) LoadStateDict(sd *tensor.StateDict, strict bool) error {
	mismatch := &MismatchError{}
	for name, raw := range sd.All() {
		current, ok := m.state.Get(name)
		if !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, name)
			continue
		}
		if !current.Shape().Equal(raw.Shape()) {
			mismatch.SizeNotSame = append(mismatch.SizeNotSame, name)
		}
	}
	if strict {
		for _, name := range m.state.Names() {
			if !sd.Has(name) {
				mismatch.Missing = append(mismatch.Missing, name)
			}
		}
	} else {
		mismatch.Unexpected = nil
	}

	if !mismatch.empty() {
		return mismatch
	}

	for name, raw := range sd.All() {
		if m.state.Has(name) {
			m.state.Set(name, raw)
		}
	}
	return nil
}
