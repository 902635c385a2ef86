package checkpoint

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/nn"
)

func testSnapshot(epoch int, step int64) Snapshot {
	return Snapshot{
		RunID: "run-1",
		Epoch: epoch,
		Step:  step,
		Loss:  0.25,
		Model: map[string]*nn.Tensor{
			"0.weight": {Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
			"0.bias":   {Shape: []int{2}, Data: []float32{-1, 1}},
		},
		Optimizer: map[string]*nn.Tensor{
			"velocity.0": {Shape: []int{2, 3}, Data: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}},
		},
		Metadata: map[string]string{"accumulate_grad_batches": "2"},
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(3, 120)))

	got, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 3, got.Epoch)
	assert.Equal(t, int64(120), got.Step)
	assert.InDelta(t, 0.25, got.Loss, 1e-12)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got.Model["0.weight"].Data)
	assert.Equal(t, []int{2, 3}, got.Model["0.weight"].Shape)
	assert.Equal(t, []float32{-1, 1}, got.Model["0.bias"].Data)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, got.Optimizer["velocity.0"].Data)
	assert.Equal(t, "2", got.Metadata["accumulate_grad_batches"])
	assert.NotContains(t, got.Model, "optimizer.velocity.0")
}

func TestEncode_DataIsAligned(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(0, 1)))

	// 6+2+6 float32 values follow the aligned header.
	dataLen := int64((6 + 2 + 6) * bytesPerFloat32)
	assert.Zero(t, (int64(buf.Len())-dataLen)%HeaderAlignment)
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(0, 1)))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecode_HeaderTamperDetected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(3, 120)))

	raw := buf.Bytes()
	i := bytes.Index(raw, []byte(`"epoch":3`))
	require.GreaterOrEqual(t, i, 0)
	raw[i+len(`"epoch":`)] = '4'

	_, err := Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestEncode_NonFiniteLoss(t *testing.T) {
	for _, loss := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		snap := testSnapshot(1, 2)
		snap.Loss = loss

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, snap))
		assert.NotContains(t, buf.String(), `"loss"`)

		got, err := Decode(&buf)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(got.Loss), "loss %v decoded as %v", loss, got.Loss)
		assert.Equal(t, 1, got.Epoch)
	}
}

func TestDecode_InvalidInput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(0, 1)))
	valid := buf.Bytes()

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "NOPE")

	badVersion := append([]byte(nil), valid...)
	badVersion[4] = 9

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"short", valid[:10], ErrTruncated},
		{"bad magic", badMagic, ErrInvalidMagic},
		{"bad version", badVersion, ErrUnsupportedVersion},
		{"truncated data", valid[:len(valid)-4], ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode_RejectsTraversalNames(t *testing.T) {
	snap := testSnapshot(0, 1)
	snap.Model["../escape"] = &nn.Tensor{Shape: []int{1}, Data: []float32{1}}

	err := Encode(&bytes.Buffer{}, snap)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invalid_name", vErr.Type)
}

func TestValidateTensorOffsets_Overlap(t *testing.T) {
	err := validateTensorOffsets([]TensorMeta{
		{Name: "a", Offset: 0, Size: 8},
		{Name: "b", Offset: 4, Size: 8},
	}, 16)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "offset_overlap", vErr.Type)
}

func TestFileName(t *testing.T) {
	name := FileName(7, 1234)
	assert.Equal(t, "epoch=0007-step=00001234.born", name)

	epoch, step, ok := ParseFileName(name)
	require.True(t, ok)
	assert.Equal(t, 7, epoch)
	assert.Equal(t, int64(1234), step)

	_, _, ok = ParseFileName(".tmp-123.born")
	assert.False(t, ok)
}

func TestFileStore_SaveAndLatest(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Latest(ctx)
	require.ErrorIs(t, err, ErrNoCheckpoint)

	for epoch := 0; epoch < 3; epoch++ {
		path, err := store.Save(ctx, testSnapshot(epoch, int64(10*(epoch+1))))
		require.NoError(t, err)
		assert.FileExists(t, path)
	}

	snap, path, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Epoch)
	assert.Equal(t, int64(30), snap.Step)
	assert.Equal(t, filepath.Join(store.Dir(), FileName(2, 30)), path)
}

func TestFileStore_Keep(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), WithKeep(2))
	require.NoError(t, err)

	for epoch := 0; epoch < 4; epoch++ {
		_, err := store.Save(ctx, testSnapshot(epoch, int64(epoch)))
		require.NoError(t, err)
	}

	paths, err := store.List()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, FileName(2, 2), filepath.Base(paths[0]))
	assert.Equal(t, FileName(3, 3), filepath.Base(paths[1]))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), testSnapshot(0, 1))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName(0, 1), entries[0].Name())
}

func TestLoad_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(0, 1))
	require.NoError(t, os.WriteFile(path, []byte("BORNgarbage"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrTruncated)
}
