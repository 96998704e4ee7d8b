package statedict

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/statedict/internal/checkpoint"
	"github.com/born-ml/statedict/internal/tensor"
)

func mustRaw(t *testing.T, shape tensor.Shape, fill float32) *tensor.RawTensor {
	t.Helper()
	values := make([]float32, shape.NumElements())
	for i := range values {
		values[i] = fill
	}
	raw, err := tensor.FromFloat32(shape, values)
	require.NoError(t, err)
	return raw
}

// stateDict builds an ordered state dict from name/shape pairs filled with fill.
func stateDict(t *testing.T, fill float32, entries ...any) *tensor.StateDict {
	t.Helper()
	require.Zero(t, len(entries)%2)
	sd := tensor.NewStateDict()
	for i := 0; i < len(entries); i += 2 {
		sd.Set(entries[i].(string), mustRaw(t, entries[i+1].(tensor.Shape), fill))
	}
	return sd
}

func newReconciler(t *testing.T, model Model, opts ...Option) (*Reconciler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]Option{WithLogger(zerolog.New(&buf))}, opts...)
	r, err := New(model, opts...)
	require.NoError(t, err)
	return r, &buf
}

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewNilModel(t *testing.T) {
	r, err := New(nil)
	assert.Nil(t, r)
	require.ErrorIs(t, err, ErrNilModel)
}

func TestDiffExcludedNamesNeverReported(t *testing.T) {
	model := NewModule(stateDict(t, 0,
		"bn.weight", tensor.Shape{4},
		"bn.num_batches_tracked", tensor.Shape{},
		"fc.num_batches_tracked", tensor.Shape{},
	))
	r, _ := newReconciler(t, model, WithExclude("num_batches_tracked"))

	ckpt := stateDict(t, 1,
		"bn.weight", tensor.Shape{4},
		"bn.num_batches_tracked", tensor.Shape{2},
	)
	report, match := r.Diff(ckpt)

	assert.Equal(t, []string{"bn.num_batches_tracked", "fc.num_batches_tracked"}, report.Excluded)
	for _, name := range report.Excluded {
		assert.NotContains(t, report.Matched, name)
		assert.NotContains(t, report.NameNotSame, name)
		assert.NotContains(t, report.BothNotSame, name)
		assert.NotContains(t, report.SizeNotSame, name)
		assert.False(t, match.Has(name))
	}
	assert.Equal(t, 1, report.Match)
}

func TestDiffPartitionsExpectedNames(t *testing.T) {
	model := NewModule(stateDict(t, 0,
		"a", tensor.Shape{2, 2},
		"b", tensor.Shape{3},
		"c", tensor.Shape{1},
		"d", tensor.Shape{5},
		"skip.me", tensor.Shape{1},
	))
	r, buf := newReconciler(t, model, WithExclude("skip"))

	ckpt := stateDict(t, 1,
		"a", tensor.Shape{2, 2},
		"b", tensor.Shape{4},
		"d", tensor.Shape{5},
		"extra", tensor.Shape{1},
	)
	report, match := r.Diff(ckpt)

	assert.Equal(t, 2, report.Match)
	assert.Equal(t, []string{"a", "d"}, report.Matched)
	assert.Equal(t, []string{"a", "d"}, match.Names())
	assert.Equal(t, []string{"c"}, report.NameNotSame)
	assert.Equal(t, map[string]ShapePair{
		"b": {Expected: tensor.Shape{3}, Actual: tensor.Shape{4}},
	}, report.SizeNotSame)
	assert.Equal(t, []string{"b", "c"}, report.BothNotSame)
	assert.Equal(t, []string{"extra"}, report.Unexpected)
	assert.Equal(t, []string{"skip.me"}, report.Excluded)
	assert.False(t, report.Clean())

	// Every non-excluded expected name lands in exactly one bucket.
	seen := map[string]int{}
	for _, n := range report.Matched {
		seen[n]++
	}
	for _, n := range report.NameNotSame {
		seen[n]++
	}
	for n := range report.SizeNotSame {
		seen[n]++
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, seen)
	assert.ElementsMatch(t, report.BothNotSame, append(report.NameNotSame, report.SizeNotSameNames()...))

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.EqualValues(t, 2, entries[0]["match"])
	assert.EqualValues(t, 1, entries[0]["name_not_same"])
	assert.EqualValues(t, 1, entries[0]["size_not_same"])
	assert.EqualValues(t, 2, entries[0]["both_not_same"])
}

func TestDiffDoesNotMutate(t *testing.T) {
	target := stateDict(t, 0, "w", tensor.Shape{2, 2})
	model := NewModule(target)
	r, _ := newReconciler(t, model)

	ckpt := stateDict(t, 1, "w", tensor.Shape{2, 2})
	_, match := r.Diff(ckpt)
	require.True(t, match.Has("w"))

	w, _ := model.StateDict().Get("w")
	assert.Equal(t, []float32{0, 0, 0, 0}, w.AsFloat32())
	assert.Equal(t, 1, ckpt.Len())
}

func TestDiffTreatsNilTensorsAsMissing(t *testing.T) {
	target := stateDict(t, 0, "w", tensor.Shape{2, 2}, "b", tensor.Shape{2})
	target.Set("running_mean", nil)
	r, buf := newReconciler(t, NewModule(target))

	ckpt := stateDict(t, 1, "running_mean", tensor.Shape{2}, "b", tensor.Shape{2})
	ckpt.Set("w", nil)
	ckpt.Set("extra", nil)

	var (
		report *DiffReport
		match  *tensor.StateDict
	)
	require.NotPanics(t, func() { report, match = r.Diff(ckpt) })

	assert.Equal(t, 1, report.Match)
	assert.Equal(t, []string{"b"}, report.Matched)
	assert.Equal(t, []string{"w", "running_mean"}, report.NameNotSame)
	assert.Equal(t, []string{"w", "running_mean"}, report.BothNotSame)
	assert.Empty(t, report.SizeNotSame)
	assert.Equal(t, []string{"extra"}, report.Unexpected)
	assert.Equal(t, []string{"b"}, match.Names())

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0]["name_not_same"])
}

func TestLoadWithNilTargetTensor(t *testing.T) {
	target := stateDict(t, 0, "w", tensor.Shape{2})
	target.Set("buffer", nil)
	model := NewModule(target)
	r, _ := newReconciler(t, model)

	report, err := r.Load(checkpoint.FromStateDict(stateDict(t, 1, "w", tensor.Shape{2}, "buffer", tensor.Shape{2})), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"buffer"}, report.NameNotSame)

	w, _ := model.StateDict().Get("w")
	assert.Equal(t, []float32{1, 1}, w.AsFloat32())
	buffer, ok := model.StateDict().Get("buffer")
	require.True(t, ok)
	assert.Nil(t, buffer)

	_, err = r.Load(checkpoint.FromStateDict(stateDict(t, 1, "w", tensor.Shape{2}, "buffer", tensor.Shape{2})), true)
	require.ErrorIs(t, err, ErrShapeOrNameMismatch)
}

func TestStripModulePrefix(t *testing.T) {
	ckpt := stateDict(t, 1,
		"module.encoder.weight", tensor.Shape{2},
		"decoder.weight", tensor.Shape{2},
		"module.module.x", tensor.Shape{1},
		"mymodule.y", tensor.Shape{1},
	)
	out := stripModulePrefix(ckpt)
	assert.Equal(t, []string{"encoder.weight", "decoder.weight", "module.x", "mymodule.y"}, out.Names())
}

func TestStripModulePrefixCollisionLastWins(t *testing.T) {
	ckpt := tensor.NewStateDict()
	first := mustRaw(t, tensor.Shape{1}, 1)
	second := mustRaw(t, tensor.Shape{1}, 2)
	ckpt.Set("w", first)
	ckpt.Set("module.w", second)

	out := stripModulePrefix(ckpt)
	require.Equal(t, 1, out.Len())
	got, _ := out.Get("w")
	assert.Same(t, second, got)
}

func TestRemap(t *testing.T) {
	tests := []struct {
		name         string
		nameMap      map[string]string
		keepUnmapped bool
		ckpt         []string
		want         []string
	}{
		{
			name: "empty map passes through",
			ckpt: []string{"a", "b"},
			want: []string{"a", "b"},
		},
		{
			name:    "renames listed key",
			nameMap: map[string]string{"old.name": "new.name"},
			ckpt:    []string{"old.name"},
			want:    []string{"new.name"},
		},
		{
			name:    "absent key drops everything else",
			nameMap: map[string]string{"old.name": "new.name"},
			ckpt:    []string{"other.name"},
			want:    []string{},
		},
		{
			name:    "unlisted keys are dropped",
			nameMap: map[string]string{"old.name": "new.name"},
			ckpt:    []string{"old.name", "other.name"},
			want:    []string{"new.name"},
		},
		{
			name:         "keep unmapped passes unlisted keys",
			nameMap:      map[string]string{"old.name": "new.name"},
			keepUnmapped: true,
			ckpt:         []string{"other.name", "old.name"},
			want:         []string{"other.name", "new.name"},
		},
		{
			name:    "keys visited in sorted order",
			nameMap: map[string]string{"b": "y", "a": "x"},
			ckpt:    []string{"b", "a"},
			want:    []string{"x", "y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ckpt := tensor.NewStateDict()
			for _, n := range tt.ckpt {
				ckpt.Set(n, mustRaw(t, tensor.Shape{1}, 1))
			}
			got := remap(ckpt, tt.nameMap, tt.keepUnmapped).Names()
			if got == nil {
				got = []string{}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareRemapsBeforeStripping(t *testing.T) {
	model := NewModule(stateDict(t, 0, "encoder.weight", tensor.Shape{2}))
	r, _ := newReconciler(t, model, WithNameMap(map[string]string{"enc.w": "module.encoder.weight"}))

	out := r.Prepare(stateDict(t, 1, "enc.w", tensor.Shape{2}))
	assert.Equal(t, []string{"encoder.weight"}, out.Names())
}

func TestLoadReplacesMatchingTensor(t *testing.T) {
	model := NewModule(stateDict(t, 0, "w", tensor.Shape{2, 2}))
	r, buf := newReconciler(t, model)

	supplied := mustRaw(t, tensor.Shape{2, 2}, 7)
	ckpt := tensor.NewStateDict()
	ckpt.Set("w", supplied)

	report, err := r.Load(checkpoint.FromStateDict(ckpt), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Match)
	assert.True(t, report.Clean())

	w, _ := model.StateDict().Get("w")
	assert.Equal(t, []float32{7, 7, 7, 7}, w.AsFloat32())

	entries := logEntries(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "info", entries[1]["level"])
	assert.Equal(t, "<state_dict>", entries[1]["source"])
	assert.Equal(t, "load state dict success", entries[1]["message"])
}

func TestLoadShapeMismatch(t *testing.T) {
	t.Run("non-strict leaves target", func(t *testing.T) {
		model := NewModule(stateDict(t, 0, "w", tensor.Shape{2, 2}))
		r, _ := newReconciler(t, model)

		report, err := r.Load(checkpoint.FromStateDict(stateDict(t, 7, "w", tensor.Shape{3, 3})), false)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Match)
		assert.Contains(t, report.SizeNotSame, "w")

		w, _ := model.StateDict().Get("w")
		assert.Equal(t, tensor.Shape{2, 2}, w.Shape())
		assert.Equal(t, []float32{0, 0, 0, 0}, w.AsFloat32())
	})

	t.Run("strict fails", func(t *testing.T) {
		model := NewModule(stateDict(t, 0, "w", tensor.Shape{2, 2}))
		r, buf := newReconciler(t, model)

		report, err := r.Load(checkpoint.FromStateDict(stateDict(t, 7, "w", tensor.Shape{3, 3})), true)
		require.ErrorIs(t, err, ErrShapeOrNameMismatch)
		require.NotNil(t, report)

		var mismatch *MismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, []string{"w"}, mismatch.SizeNotSame)

		w, _ := model.StateDict().Get("w")
		assert.Equal(t, []float32{0, 0, 0, 0}, w.AsFloat32())
		assert.NotContains(t, buf.String(), "load state dict success")
	})
}

func TestLoadStrictRejectsPartialAndLeavesTargetUntouched(t *testing.T) {
	model := NewModule(stateDict(t, 0,
		"a", tensor.Shape{2},
		"b", tensor.Shape{2},
	))
	r, _ := newReconciler(t, model)

	_, err := r.Load(checkpoint.FromStateDict(stateDict(t, 5, "a", tensor.Shape{2})), true)
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"b"}, mismatch.Missing)

	a, _ := model.StateDict().Get("a")
	assert.Equal(t, []float32{0, 0}, a.AsFloat32())
}

func TestLoadStrictCountsExcludedAsMissing(t *testing.T) {
	model := NewModule(stateDict(t, 0,
		"w", tensor.Shape{2},
		"running_var", tensor.Shape{2},
	))
	r, _ := newReconciler(t, model, WithExclude("running"))

	ckpt := stateDict(t, 1, "w", tensor.Shape{2}, "running_var", tensor.Shape{2})
	_, err := r.Load(checkpoint.FromStateDict(ckpt), true)
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"running_var"}, mismatch.Missing)

	_, err = r.Load(checkpoint.FromStateDict(ckpt), false)
	require.NoError(t, err)
	w, _ := model.StateDict().Get("w")
	assert.Equal(t, []float32{1, 1}, w.AsFloat32())
	rv, _ := model.StateDict().Get("running_var")
	assert.Equal(t, []float32{0, 0}, rv.AsFloat32())
}

func TestLoadUnwrapsStateDict(t *testing.T) {
	load := func(src checkpoint.Source) []float32 {
		model := NewModule(stateDict(t, 0, "w", tensor.Shape{2}))
		r, _ := newReconciler(t, model)
		report, err := r.Load(src, true)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Match)
		w, _ := model.StateDict().Get("w")
		return w.AsFloat32()
	}

	nested := &checkpoint.Container{
		Tensors:  tensor.NewStateDict(),
		Children: map[string]*checkpoint.Container{"state_dict": checkpoint.NewContainer(stateDict(t, 3, "w", tensor.Shape{2}))},
		Meta:     map[string]any{"epoch": 5},
	}
	flat := stateDict(t, 3, "w", tensor.Shape{2})

	assert.Equal(t, load(checkpoint.FromStateDict(flat)), load(checkpoint.FromContainer(nested)))
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	ckpt := stateDict(t, 2,
		"module.encoder.weight", tensor.Shape{2, 2},
		"module.encoder.bias", tensor.Shape{2},
	)

	for _, name := range []string{"ckpt.safetensors", "ckpt.born"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, checkpoint.WriteFile(path, ckpt, nil))

			model := NewModule(stateDict(t, 0,
				"encoder.weight", tensor.Shape{2, 2},
				"encoder.bias", tensor.Shape{2},
			))
			r, buf := newReconciler(t, model)

			report, err := r.Load(checkpoint.FromFile(path), true)
			require.NoError(t, err)
			assert.Equal(t, 2, report.Match)

			w, _ := model.StateDict().Get("encoder.weight")
			assert.Equal(t, []float32{2, 2, 2, 2}, w.AsFloat32())
			assert.Contains(t, buf.String(), path)
		})
	}
}

func TestLoadFromBornCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.born")
	require.NoError(t, checkpoint.WriteCheckpoint(path, &checkpoint.Container{
		Tensors: tensor.NewStateDict(),
		Children: map[string]*checkpoint.Container{
			"state_dict": checkpoint.NewContainer(stateDict(t, 4, "w", tensor.Shape{2})),
			"optimizer":  checkpoint.NewContainer(stateDict(t, 9, "w.m", tensor.Shape{2})),
		},
		Meta: map[string]any{"epoch": 5},
	}))

	model := NewModule(stateDict(t, 0, "w", tensor.Shape{2}))
	r, _ := newReconciler(t, model)
	report, err := r.Load(checkpoint.FromFile(path), true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Match)
	assert.Empty(t, report.Unexpected)
}

func TestLoadErrorPreservesCause(t *testing.T) {
	model := NewModule(stateDict(t, 0, "w", tensor.Shape{2}))
	r, _ := newReconciler(t, model)

	missing := filepath.Join(t.TempDir(), "missing.safetensors")
	report, err := r.Load(checkpoint.FromFile(missing), false)
	assert.Nil(t, report)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, missing, loadErr.Source)
	require.Error(t, loadErr.Unwrap())
	assert.Contains(t, err.Error(), loadErr.Unwrap().Error())
}

func TestLoadRepeatedOverwritesOnlyMatched(t *testing.T) {
	model := NewModule(stateDict(t, 0, "a", tensor.Shape{1}, "b", tensor.Shape{1}))
	r, _ := newReconciler(t, model)

	_, err := r.Load(checkpoint.FromStateDict(stateDict(t, 1, "a", tensor.Shape{1}, "b", tensor.Shape{1})), false)
	require.NoError(t, err)
	_, err = r.Load(checkpoint.FromStateDict(stateDict(t, 2, "a", tensor.Shape{1})), false)
	require.NoError(t, err)

	a, _ := model.StateDict().Get("a")
	b, _ := model.StateDict().Get("b")
	assert.Equal(t, []float32{2}, a.AsFloat32())
	assert.Equal(t, []float32{1}, b.AsFloat32())
}

func TestLoadDoesNotMutateSource(t *testing.T) {
	model := NewModule(stateDict(t, 0, "w", tensor.Shape{2}))
	r, _ := newReconciler(t, model, WithNameMap(map[string]string{"module.w": "w"}))

	src := stateDict(t, 1, "module.w", tensor.Shape{2}, "other", tensor.Shape{1})
	_, err := r.Load(checkpoint.FromStateDict(src), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"module.w", "other"}, src.Names())
}

type failingModel struct {
	*Module
}

func (failingModel) LoadStateDict(*tensor.StateDict, bool) error {
	return errors.New("device busy")
}

func TestLoadWrapsModelError(t *testing.T) {
	model := failingModel{NewModule(stateDict(t, 0, "w", tensor.Shape{1}))}
	r, buf := newReconciler(t, model)

	_, err := r.Load(checkpoint.FromStateDict(stateDict(t, 1, "w", tensor.Shape{1})), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assign checkpoint <state_dict>")
	assert.Contains(t, err.Error(), "device busy")
	assert.NotContains(t, buf.String(), "load state dict success")
}

func TestDiffSource(t *testing.T) {
	model := NewModule(stateDict(t, 0, "w", tensor.Shape{2}))
	r, _ := newReconciler(t, model)

	report, err := r.DiffSource(checkpoint.FromStateDict(stateDict(t, 1, "w", tensor.Shape{2})))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Match)

	w, _ := model.StateDict().Get("w")
	assert.Equal(t, []float32{0, 0}, w.AsFloat32())
}

func TestWithExcludeIgnoresEmpty(t *testing.T) {
	model := NewModule(stateDict(t, 0, "w", tensor.Shape{2}))
	r, _ := newReconciler(t, model, WithExclude("", "bias"))
	assert.Equal(t, []string{"bias"}, r.exclude)
}
