package statedict

import (
	"maps"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/born-ml/statedict/internal/checkpoint"
	"github.com/born-ml/statedict/internal/logging"
	"github.com/born-ml/statedict/internal/tensor"
)

// Reconciler loads checkpoints into one model.
type Reconciler struct {
	model        Model
	nameMap      map[string]string
	exclude      []string
	keepUnmapped bool
	logger       zerolog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNameMap renames checkpoint entries (source name -> model name) before
// diffing. Names not listed are dropped unless WithKeepUnmapped is also given.
func WithNameMap(m map[string]string) Option {
	return func(r *Reconciler) {
		r.nameMap = maps.Clone(m)
	}
}

// WithExclude skips every expected name containing one of substrs.
// Empty substrings are ignored.
func WithExclude(substrs ...string) Option {
	return func(r *Reconciler) {
		for _, s := range substrs {
			if s != "" {
				r.exclude = append(r.exclude, s)
			}
		}
	}
}

// WithKeepUnmapped passes checkpoint names that the name map does not
// mention through unchanged.
func WithKeepUnmapped() Option {
	return func(r *Reconciler) {
		r.keepUnmapped = true
	}
}

// WithLogger sets the logger for diff summaries and load results.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New creates a reconciler for model.
func New(model Model, opts ...Option) (*Reconciler, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	r := &Reconciler{
		model:  model,
		logger: *logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Load reads src, reconciles it against the model and assigns every match.
//
// In strict mode any missing, excluded or shape-mismatched expected name
// fails the load with a *MismatchError and the model is left untouched.
// Otherwise unmatched names keep their current values. The report is
// returned whenever the source could be read.
func (r *Reconciler) Load(src checkpoint.Source, strict bool) (*DiffReport, error) {
	report, match, err := r.diffSource(src)
	if err != nil {
		return nil, err
	}

	if strict {
		if mismatch := strictMismatch(report); mismatch != nil {
			return report, mismatch
		}
	}

	if err := r.model.LoadStateDict(match, strict); err != nil {
		return report, errors.Wrapf(err, "assign checkpoint %s", src)
	}

	r.logger.Info().Str("source", src.String()).Msg("load state dict success")
	return report, nil
}

// DiffSource reads src and reports how it lines up with the model without
// assigning anything.
func (r *Reconciler) DiffSource(src checkpoint.Source) (*DiffReport, error) {
	report, _, err := r.diffSource(src)
	return report, err
}

func (r *Reconciler) diffSource(src checkpoint.Source) (*DiffReport, *tensor.StateDict, error) {
	container, err := src.Resolve()
	if err != nil {
		return nil, nil, &LoadError{Source: src.String(), Err: err}
	}
	report, match := r.Diff(r.Prepare(container.StateDict()))
	return report, match, nil
}

// Prepare applies the name map and then strips the "module." prefix.
func (r *Reconciler) Prepare(ckpt *tensor.StateDict) *tensor.StateDict {
	return stripModulePrefix(remap(ckpt, r.nameMap, r.keepUnmapped))
}

// Diff compares ckpt with the model's current state and returns the report
// together with the entries safe to assign. It does not modify anything.
// A nil tensor on either side counts as a missing name.
func (r *Reconciler) Diff(ckpt *tensor.StateDict) (*DiffReport, *tensor.StateDict) {
	report := newDiffReport()
	match := tensor.NewStateDict()
	target := r.model.StateDict()

	for name, expected := range target.All() {
		if r.excluded(name) {
			report.Excluded = append(report.Excluded, name)
			continue
		}

		actual, ok := ckpt.Get(name)
		switch {
		case !ok || actual == nil || expected == nil:
			report.NameNotSame = append(report.NameNotSame, name)
			report.BothNotSame = append(report.BothNotSame, name)
		case expected.Shape().Equal(actual.Shape()):
			report.Match++
			report.Matched = append(report.Matched, name)
			match.Set(name, actual)
		default:
			report.SizeNotSame[name] = ShapePair{
				Expected: expected.Shape().Clone(),
				Actual:   actual.Shape().Clone(),
			}
			report.BothNotSame = append(report.BothNotSame, name)
		}
	}

	for name := range ckpt.All() {
		if !target.Has(name) {
			report.Unexpected = append(report.Unexpected, name)
		}
	}

	r.logger.Warn().
		Int("match", report.Match).
		Int("name_not_same", len(report.NameNotSame)).
		Int("size_not_same", len(report.SizeNotSame)).
		Int("both_not_same", len(report.BothNotSame)).
		Msg("state dict diff")

	return report, match
}

func (r *Reconciler) excluded(name string) bool {
	for _, substr := range r.exclude {
		if strings.Contains(name, substr) {
			return true
		}
	}
	return false
}

// strictMismatch lists every expected name a strict load would not supply.
// Excluded names are never supplied, so they count as missing.
func strictMismatch(report *DiffReport) *MismatchError {
	mismatch := &MismatchError{
		SizeNotSame: report.SizeNotSameNames(),
	}
	mismatch.Missing = append(mismatch.Missing, report.NameNotSame...)
	mismatch.Missing = append(mismatch.Missing, report.Excluded...)
	if mismatch.empty() {
		return nil
	}
	return mismatch
}
