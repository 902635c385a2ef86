package checkpoint

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// computeChecksum computes the SHA-256 checksum over the header JSON followed
// by the tensor data.
func computeChecksum(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// validateTensorOffsets checks for overlapping tensor regions and out-of-bounds access.
func validateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// validateTensorName rejects names that could be abused as paths.
func validateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\\x00"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains path separator or null byte"}
	}
	return nil
}

// validateHeader checks tensor count, names, dtypes, shapes and offsets.
func validateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}
	for _, t := range h.Tensors {
		if err := validateTensorName(t.Name); err != nil {
			return err
		}
		if t.DType != dtypeFloat32 {
			return &ValidationError{Type: "unsupported_dtype", Tensor: t.Name, Details: t.DType}
		}
		n := int64(1)
		for _, d := range t.Shape {
			if d < 0 {
				return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprint(t.Shape)}
			}
			n *= int64(d)
		}
		if n*bytesPerFloat32 != t.Size {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, n*bytesPerFloat32, t.Size),
			}
		}
	}
	return validateTensorOffsets(h.Tensors, dataSize)
}
