package checkpoint

import (
	"time"

	"github.com/born-ml/born-train/internal/nn"
)

// Format constants.
const (
	MagicBytes       = "BORN"
	FormatVersionV2  = 2    // v2: With SHA-256 checksum
	HeaderAlignment  = 64   // Align tensor data to 64 bytes
	FixedHeaderSize  = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize     = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset   = 0x20 // Checksum offset in the fixed header
	optimizerPrefix  = "optimizer."
	writerVersion    = "born-train/0.1.0"
	dtypeFloat32     = "float32"
	bytesPerFloat32  = 4
	modelTypeTrainer = "Checkpoint"
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	BornVersion    string            `json:"born_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint bool     `json:"is_checkpoint"`
	RunID        string   `json:"run_id"`
	Epoch        int      `json:"epoch"`
	Step         int64    `json:"step"`
	Loss         *float64 `json:"loss,omitempty"` // nil when the loss was not finite
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Bytes from start of tensor data
	Size   int64  `json:"size"`   // Size in bytes
}

// Snapshot is the training state captured at an epoch boundary.
//
// Epoch is the index of the last completed epoch; Step is the number of
// optimizer steps applied so far.
type Snapshot struct {
	RunID     string
	Epoch     int
	Step      int64
	Loss      float64
	Model     map[string]*nn.Tensor
	Optimizer map[string]*nn.Tensor
	Metadata  map[string]string
	CreatedAt time.Time
}
