package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/born-ml/born-train/internal/nn"
)

// Decode reads a .born v2 checkpoint, verifying its checksum and layout.
func Decode(r io.Reader) (Snapshot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	header, data, err := parse(raw)
	if err != nil {
		return Snapshot{}, err
	}
	if header.CheckpointMeta == nil || !header.CheckpointMeta.IsCheckpoint {
		return Snapshot{}, ErrNotCheckpoint
	}

	snap := Snapshot{
		RunID:     header.CheckpointMeta.RunID,
		Epoch:     header.CheckpointMeta.Epoch,
		Step:      header.CheckpointMeta.Step,
		Loss:      math.NaN(),
		Model:     make(map[string]*nn.Tensor),
		Optimizer: make(map[string]*nn.Tensor),
		Metadata:  header.Metadata,
		CreatedAt: header.CreatedAt,
	}
	if header.CheckpointMeta.Loss != nil {
		snap.Loss = *header.CheckpointMeta.Loss
	}
	for _, meta := range header.Tensors {
		values := make([]float32, meta.Size/bytesPerFloat32)
		region := data[meta.Offset : meta.Offset+meta.Size]
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(region[i*bytesPerFloat32:]))
		}
		t := &nn.Tensor{Shape: meta.Shape, Data: values}
		if name, ok := strings.CutPrefix(meta.Name, optimizerPrefix); ok {
			snap.Optimizer[name] = t
		} else {
			snap.Model[meta.Name] = t
		}
	}
	return snap, nil
}

// ReadHeader parses only the header of a checkpoint, still verifying the checksum.
func ReadHeader(r io.Reader) (Header, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Header{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	header, _, err := parse(raw)
	return header, err
}

func parse(raw []byte) (Header, []byte, error) {
	if len(raw) < FixedHeaderSize {
		return Header{}, nil, ErrTruncated
	}
	if !bytes.Equal(raw[0:4], []byte(MagicBytes)) {
		return Header{}, nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(raw[4:8]); version != FormatVersionV2 {
		return Header{}, nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersionV2)
	}

	headerSize := binary.LittleEndian.Uint64(raw[16:24])
	dataSize := binary.LittleEndian.Uint64(raw[24:32])
	if headerSize > MaxHeaderSize {
		return Header{}, nil, ErrHeaderTooLarge
	}

	headerEnd := int64(FixedHeaderSize) + int64(headerSize) //nolint:gosec // bounded by MaxHeaderSize
	if int64(len(raw)) < headerEnd {
		return Header{}, nil, ErrTruncated
	}
	headerJSON := raw[FixedHeaderSize:headerEnd]

	padding := (HeaderAlignment - (headerEnd % HeaderAlignment)) % HeaderAlignment
	dataOffset := headerEnd + padding
	if uint64(len(raw)) < uint64(dataOffset)+dataSize { //nolint:gosec // dataOffset is non-negative
		return Header{}, nil, ErrTruncated
	}
	data := raw[dataOffset : uint64(dataOffset)+dataSize] //nolint:gosec // checked above

	var stored [32]byte
	copy(stored[:], raw[ChecksumOffset:ChecksumOffset+ChecksumSize])
	if computeChecksum(headerJSON, data) != stored {
		return Header{}, nil, ErrChecksumMismatch
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	if err := validateHeader(&header, int64(len(data))); err != nil {
		return Header{}, nil, fmt.Errorf("validation failed: %w", err)
	}
	return header, data, nil
}
