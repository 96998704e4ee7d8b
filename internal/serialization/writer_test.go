package serialization

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/statedict/internal/tensor"
)

// TestWriteRejectsUnreadableNames verifies names the reader refuses never reach the output.
func TestWriteRejectsUnreadableNames(t *testing.T) {
	for _, name := range []string{"", "fc\x00weight"} {
		t.Run(name, func(t *testing.T) {
			sd := testStateDict(t)
			w, _ := sd.Get("fc.weight")
			sd.Set(name, w.Clone())

			var buf bytes.Buffer
			err := Write(&buf, sd, Header{}, FormatVersionV2)
			if !errors.Is(err, ErrInvalidTensorName) {
				t.Fatalf("Expected ErrInvalidTensorName, got: %v", err)
			}
			if buf.Len() != 0 {
				t.Errorf("Expected nothing written, got %d bytes", buf.Len())
			}
		})
	}
}

// TestWriteFileRemovesRejectedFile verifies a failed write leaves no file behind.
func TestWriteFileRemovesRejectedFile(t *testing.T) {
	sd := testStateDict(t)
	w, _ := sd.Get("fc.weight")
	sd.Set("", w.Clone())

	path := filepath.Join(t.TempDir(), "bad.born")
	if err := WriteFile(path, sd, Header{}, FormatVersionV2); !errors.Is(err, ErrInvalidTensorName) {
		t.Fatalf("Expected ErrInvalidTensorName, got: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed, stat error: %v", path, err)
	}
}

// TestWritePathLikeNamesRoundTrip verifies slash-separated names written by
// Write are read back under strict validation.
func TestWritePathLikeNamesRoundTrip(t *testing.T) {
	kernel, err := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	bias, err := tensor.FromFloat32(tensor.Shape{2}, []float32{5, 6})
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}

	sd := tensor.NewStateDict()
	sd.Set("encoder/layer_0/kernel", kernel)
	sd.Set("encoder/layer_0/bias", bias)

	for _, version := range []uint32{FormatVersion, FormatVersionV2} {
		path := writeTestFile(t, sd, Header{}, version)

		got, _, err := ReadFile(path)
		if err != nil {
			t.Fatalf("v%d: ReadFile failed: %v", version, err)
		}
		names := got.Names()
		if len(names) != 2 || names[0] != "encoder/layer_0/kernel" || names[1] != "encoder/layer_0/bias" {
			t.Errorf("v%d: unexpected names %v", version, names)
		}
	}
}
