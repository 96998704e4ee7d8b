package statedict

import (
	"github.com/born-ml/statedict/internal/tensor"
)

// ShapePair records the shape a model expects next to the shape found in the checkpoint.
type ShapePair struct {
	Expected tensor.Shape `json:"expected" yaml:"expected"`
	Actual   tensor.Shape `json:"actual" yaml:"actual"`
}

// DiffReport summarizes how a checkpoint lines up with a model.
//
// BothNotSame holds every NameNotSame entry and every SizeNotSame key, in
// model order. Names skipped by the exclusion list appear only in Excluded.
type DiffReport struct {
	Match       int                  `json:"match" yaml:"match"`
	SizeNotSame map[string]ShapePair `json:"size_not_same" yaml:"size_not_same"`
	NameNotSame []string             `json:"name_not_same" yaml:"name_not_same"`
	BothNotSame []string             `json:"both_not_same" yaml:"both_not_same"`
	Matched     []string             `json:"matched" yaml:"matched"`
	Excluded    []string             `json:"excluded" yaml:"excluded"`
	Unexpected  []string             `json:"unexpected" yaml:"unexpected"`
}

func newDiffReport() *DiffReport {
	return &DiffReport{
		SizeNotSame: make(map[string]ShapePair),
		NameNotSame: []string{},
		BothNotSame: []string{},
		Matched:     []string{},
		Excluded:    []string{},
		Unexpected:  []string{},
	}
}

// Clean reports whether every non-excluded expected name matched and the
// checkpoint held nothing else.
func (r *DiffReport) Clean() bool {
	return len(r.BothNotSame) == 0 && len(r.Unexpected) == 0
}

// SizeNotSameNames returns the shape-mismatched names in model order.
func (r *DiffReport) SizeNotSameNames() []string {
	names := make([]string, 0, len(r.SizeNotSame))
	for _, name := range r.BothNotSame {
		if _, ok := r.SizeNotSame[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
