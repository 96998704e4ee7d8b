package safetensors

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/statedict/internal/tensor"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w, err := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	half := make([]byte, 6)
	for i, v := range []float32{0.5, -1, 8} {
		binary.LittleEndian.PutUint16(half[i*2:], float16.Fromfloat32(v).Bits())
	}
	h, err := tensor.FromBytes(tensor.Shape{3}, tensor.Float16, half)
	require.NoError(t, err)

	step, err := tensor.NewRaw(tensor.Shape{}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)
	step.AsInt64()[0] = 1000

	sd := tensor.NewStateDict()
	sd.Set("z.weight", w)
	sd.Set("a.scale", h)
	sd.Set("step", step)

	path := filepath.Join(t.TempDir(), "rt.safetensors")
	require.NoError(t, WriteFile(path, sd, map[string]string{"format": "pt"}))

	got, meta, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pt", meta["format"])
	assert.Equal(t, []string{"z.weight", "a.scale", "step"}, got.Names())

	gw, _ := got.Get("z.weight")
	assert.Equal(t, []float32{1, 2, 3, 4}, gw.AsFloat32())

	gh, _ := got.Get("a.scale")
	assert.Equal(t, tensor.Float16, gh.DType())
	assert.Equal(t, []float32{0.5, -1, 8}, gh.Float32s())

	gs, _ := got.Get("step")
	assert.Empty(t, gs.Shape())
	assert.Equal(t, int64(1000), gs.AsInt64()[0])
}

func TestWriteAlignsHeader(t *testing.T) {
	w, _ := tensor.FromFloat32(tensor.Shape{1}, []float32{1})
	sd := tensor.NewStateDict()
	sd.Set("w", w)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sd, nil))

	headerSize := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	assert.Zero(t, (8+headerSize)%headerAlignment)
	assert.Equal(t, int(8+headerSize)+4, buf.Len())
}
