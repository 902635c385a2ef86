package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/born-ml/born-train/internal/nn"
)

// Encode writes snap to w in .born v2 format.
//
// Tensors are laid out in name order so identical snapshots produce
// identical bytes apart from the creation time.
func Encode(w io.Writer, snap Snapshot) error {
	tensors := make(map[string]*nn.Tensor, len(snap.Model)+len(snap.Optimizer))
	for name, t := range snap.Model {
		tensors[name] = t
	}
	for name, t := range snap.Optimizer {
		tensors[optimizerPrefix+name] = t
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := validateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	metadata := snap.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	header := Header{
		FormatVersion: FormatVersionV2,
		BornVersion:   writerVersion,
		ModelType:     modelTypeTrainer,
		CreatedAt:     createdAt,
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      metadata,
		CheckpointMeta: &CheckpointMeta{
			IsCheckpoint: true,
			RunID:        snap.RunID,
			Epoch:        snap.Epoch,
			Step:         snap.Step,
			Loss:         finiteOrNil(snap.Loss),
		},
	}

	var data bytes.Buffer
	var offset int64
	for _, name := range names {
		t := tensors[name]
		if t.NumElements() != len(t.Data) {
			return fmt.Errorf("tensor %s: shape %v does not match %d elements", name, t.Shape, len(t.Data))
		}
		size := int64(len(t.Data) * bytesPerFloat32)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeFloat32,
			Shape:  append([]int(nil), t.Shape...),
			Offset: offset,
			Size:   size,
		})
		buf := make([]byte, size)
		for i, v := range t.Data {
			binary.LittleEndian.PutUint32(buf[i*bytesPerFloat32:], math.Float32bits(v))
		}
		data.Write(buf)
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if len(snap.Optimizer) > 0 {
		flags |= FlagHasOptimizer
	}
	if len(metadata) > 0 {
		flags |= FlagHasMetadata
	}

	checksum := computeChecksum(headerJSON, data.Bytes())
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersionV2))
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	currentPos := int64(FixedHeaderSize + len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment

	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}
	return nil
}

// finiteOrNil drops NaN and ±Inf, which JSON cannot encode.
func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
