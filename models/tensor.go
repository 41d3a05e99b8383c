package models

import (
	"fmt"
)

// Tensor is a dense row-major float32 array handed to and returned by the
// inference engine.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func NewTensor(shape ...int64) Tensor {
	s := append([]int64(nil), shape...)
	return Tensor{
		Shape: s,
		Data:  make([]float32, ShapeSize(s)),
	}
}

// ShapeSize returns the element count of shape, or -1 if any dimension is negative.
func ShapeSize(shape []int64) int {
	size := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		size *= int(d)
	}
	return size
}

func (t Tensor) Len() int {
	return len(t.Data)
}

func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("tensor has no shape")
	}
	want := ShapeSize(t.Shape)
	if want < 0 {
		return fmt.Errorf("tensor shape %v has a negative dimension", t.Shape)
	}
	if want != len(t.Data) {
		return fmt.Errorf("tensor shape %v needs %d values, got %d", t.Shape, want, len(t.Data))
	}
	return nil
}

func (t Tensor) SameShape(shape []int64) bool {
	if len(t.Shape) != len(shape) {
		return false
	}
	for i := range shape {
		if t.Shape[i] != shape[i] {
			return false
		}
	}
	return true
}

// Squeeze drops every dimension of size 1. The data is shared, not copied.
func (t Tensor) Squeeze() Tensor {
	shape := make([]int64, 0, len(t.Shape))
	for _, d := range t.Shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	return Tensor{Shape: shape, Data: t.Data}
}
