package nn

import (
	"fmt"
	"slices"
)

// Tensor is a dense row-major float32 buffer with a shape.
//
// Layers in this package operate on 2-D tensors shaped [batch, features].
// State dictionaries use Tensor for parameters and optimizer buffers of any rank.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor wraps data with the given shape.
//
// Returns an error if the number of elements implied by shape does not match len(data).
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	n := numElements(shape)
	if n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float32, numElements(shape))}
}

// FromRows builds a [len(rows), cols] tensor, copying each row.
//
// Panics if rows have different lengths.
func FromRows(rows [][]float32) *Tensor {
	if len(rows) == 0 {
		return Zeros(0, 0)
	}
	cols := len(rows[0])
	t := Zeros(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			panic(fmt.Sprintf("nn.FromRows: row %d has %d columns, want %d", i, len(r), cols))
		}
		copy(t.Data[i*cols:(i+1)*cols], r)
	}
	return t
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return numElements(t.Shape)
}

// Rows returns the leading dimension of a 2-D tensor.
func (t *Tensor) Rows() int {
	return t.Shape[0]
}

// Cols returns the trailing dimension of a 2-D tensor.
func (t *Tensor) Cols() int {
	return t.Shape[1]
}

// Row returns a view of row i of a 2-D tensor.
func (t *Tensor) Row(i int) []float32 {
	c := t.Cols()
	return t.Data[i*c : (i+1)*c]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// SameShape reports whether both tensors have identical shapes.
func (t *Tensor) SameShape(other *Tensor) bool {
	return slices.Equal(t.Shape, other.Shape)
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func mustBe2D(op string, t *Tensor) {
	if t == nil || len(t.Shape) != 2 {
		panic(fmt.Sprintf("nn.%s: expected 2-D input [batch, features]", op))
	}
}
