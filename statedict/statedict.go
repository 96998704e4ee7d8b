// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package statedict loads checkpoints into models whose parameter names do
// not line up exactly with the names in the file.
//
// A Reconciler resolves a checkpoint source (an in-memory state dict, a
// nested container or a .safetensors / .born file), unwraps a nested
// "state_dict", renames keys, strips the "module." prefix added by
// replicated training and assigns every entry whose name and shape match.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/statedict/statedict"
//	)
//
//	model := statedict.NewModule(expected)
//	r, err := statedict.New(model,
//	    statedict.WithNameMap(map[string]string{"fc.W": "fc.weight"}),
//	    statedict.WithExclude("num_batches_tracked"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := r.Load(statedict.FromFile("checkpoint.born"), false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("matched %d tensors, %d missing\n", report.Match, len(report.NameNotSame))
package statedict

import (
	"github.com/rs/zerolog"

	"github.com/born-ml/statedict/internal/checkpoint"
	"github.com/born-ml/statedict/internal/statedict"
	"github.com/born-ml/statedict/tensor"
)

// Reconciler loads checkpoints into one model.
type Reconciler = statedict.Reconciler

// Option configures a Reconciler.
type Option = statedict.Option

// Model is the target of a load.
//
// Implementations expose their current named tensors and accept
// replacements for a subset of them.
type Model = statedict.Model

// Module is an in-memory Model backed by a state dict.
type Module = statedict.Module

// DiffReport summarizes how a checkpoint lines up with a model.
type DiffReport = statedict.DiffReport

// ShapePair holds the expected and the actual shape of a mismatched tensor.
type ShapePair = statedict.ShapePair

// LoadError reports a checkpoint source that could not be read or decoded.
type LoadError = statedict.LoadError

// MismatchError reports the names that prevented a strict load.
type MismatchError = statedict.MismatchError

// Errors.
var (
	ErrNilModel            = statedict.ErrNilModel
	ErrShapeOrNameMismatch = statedict.ErrShapeOrNameMismatch
)

// New creates a reconciler for model.
func New(model Model, opts ...Option) (*Reconciler, error) {
	return statedict.New(model, opts...)
}

// NewModule creates an in-memory model expecting the names and shapes of sd.
func NewModule(sd *tensor.StateDict) *Module {
	return statedict.NewModule(sd)
}

// WithNameMap renames checkpoint entries (source name -> model name).
// Names not listed are dropped unless WithKeepUnmapped is also given.
func WithNameMap(m map[string]string) Option {
	return statedict.WithNameMap(m)
}

// WithExclude skips every expected name containing one of substrs.
func WithExclude(substrs ...string) Option {
	return statedict.WithExclude(substrs...)
}

// WithKeepUnmapped keeps checkpoint names the name map does not mention.
func WithKeepUnmapped() Option {
	return statedict.WithKeepUnmapped()
}

// WithLogger sets the logger for diff summaries and load results.
func WithLogger(logger zerolog.Logger) Option {
	return statedict.WithLogger(logger)
}

// Source is where a checkpoint comes from.
type Source = checkpoint.Source

// Container is a decoded checkpoint with nested children and metadata.
type Container = checkpoint.Container

// FromStateDict uses an in-memory flat mapping.
func FromStateDict(sd *tensor.StateDict) Source {
	return checkpoint.FromStateDict(sd)
}

// FromContainer uses an in-memory nested checkpoint.
func FromContainer(c *Container) Source {
	return checkpoint.FromContainer(c)
}

// FromFile reads a .safetensors or .born checkpoint from path.
func FromFile(path string) Source {
	return checkpoint.FromFile(path)
}

// ReadFile decodes the checkpoint at path.
func ReadFile(path string) (*Container, error) {
	return checkpoint.ReadFile(path)
}

// WriteFile writes sd to path as .safetensors or .born, by extension.
func WriteFile(path string, sd *tensor.StateDict, metadata map[string]string) error {
	return checkpoint.WriteFile(path, sd, metadata)
}
