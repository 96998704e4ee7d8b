package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRaw(t *testing.T, shape ...int) *RawTensor {
	t.Helper()
	raw, err := NewRaw(Shape(shape), Float32, CPU)
	require.NoError(t, err)
	return raw
}

func TestStateDictPreservesInsertionOrder(t *testing.T) {
	sd := NewStateDict()
	sd.Set("z", mustRaw(t, 1))
	sd.Set("a", mustRaw(t, 2))
	sd.Set("m", mustRaw(t, 3))

	assert.Equal(t, []string{"z", "a", "m"}, sd.Names())
	assert.Equal(t, 3, sd.Len())
}

func TestStateDictReplaceKeepsPosition(t *testing.T) {
	sd := NewStateDict()
	sd.Set("a", mustRaw(t, 1))
	sd.Set("b", mustRaw(t, 1))

	replacement := mustRaw(t, 4)
	sd.Set("a", replacement)

	assert.Equal(t, []string{"a", "b"}, sd.Names())
	got, ok := sd.Get("a")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestStateDictDelete(t *testing.T) {
	sd := NewStateDict()
	sd.Set("a", mustRaw(t, 1))
	sd.Set("b", mustRaw(t, 1))

	sd.Delete("a")
	sd.Delete("missing")

	assert.Equal(t, []string{"b"}, sd.Names())
	assert.False(t, sd.Has("a"))
}

func TestStateDictNilSafeReads(t *testing.T) {
	var sd *StateDict
	assert.Equal(t, 0, sd.Len())
	assert.Nil(t, sd.Names())
	assert.False(t, sd.Has("x"))
	for range sd.All() {
		t.Fatal("nil dict should not yield")
	}
}

func TestStateDictFromMapSortsNames(t *testing.T) {
	sd := StateDictFromMap(map[string]*RawTensor{
		"layer.1.weight": mustRaw(t, 2),
		"layer.0.weight": mustRaw(t, 2),
		"bias":           mustRaw(t, 2),
	})
	assert.Equal(t, []string{"bias", "layer.0.weight", "layer.1.weight"}, sd.Names())
}

func TestStateDictCloneIsShallow(t *testing.T) {
	w := mustRaw(t, 2, 2)
	sd := NewStateDict()
	sd.Set("w", w)

	c := sd.Clone()
	c.Set("extra", mustRaw(t, 1))

	assert.Equal(t, 1, sd.Len(), "clone must not alias the name list")
	got, _ := c.Get("w")
	assert.Same(t, w, got)
}

func TestStateDictByteSize(t *testing.T) {
	sd := NewStateDict()
	sd.Set("w", mustRaw(t, 2, 3))
	sd.Set("b", mustRaw(t, 3))
	assert.Equal(t, int64(36), sd.ByteSize())
}
