// Package vector provides a validated fixed-dimension embedding type.
// Every embedding crossing into the recommendation core passes through [New],
// so downstream code never sees an empty, ragged or non-finite vector.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmpty is returned for a zero-length embedding.
	ErrEmpty = errors.New("vector: empty embedding")

	// ErrNonFinite is returned when a component is NaN or ±Inf.
	ErrNonFinite = errors.New("vector: non-finite component")
)

// DimensionError reports an embedding whose length differs from the
// configured dimensionality.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector: dimension mismatch: got %d, want %d", e.Got, e.Want)
}

// Vector is an immutable, validated embedding.
type Vector struct {
	values []float32
}

// New validates values and returns a Vector holding a private copy.
// When dim is positive the length must equal dim.
func New(values []float32, dim int) (Vector, error) {
	if len(values) == 0 {
		return Vector{}, ErrEmpty
	}
	if dim > 0 && len(values) != dim {
		return Vector{}, &DimensionError{Got: len(values), Want: dim}
	}
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Vector{}, fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	cp := make([]float32, len(values))
	copy(cp, values)
	return Vector{values: cp}, nil
}

// MustNew is like [New] but panics on invalid input. Intended for tests and
// literal fixtures only.
func MustNew(values ...float32) Vector {
	v, err := New(values, 0)
	if err != nil {
		panic(err)
	}
	return v
}

// Dim returns the number of components. Zero means the Vector is unset.
func (v Vector) Dim() int { return len(v.values) }

// IsZero reports whether v was never initialised through [New].
func (v Vector) IsZero() bool { return len(v.values) == 0 }

// Slice returns a copy of the components.
func (v Vector) Slice() []float32 {
	out := make([]float32, len(v.values))
	copy(out, v.values)
	return out
}

// Euclidean returns the L2 distance between a and b. Vectors of different
// dimension have no meaningful distance and yield +Inf.
func Euclidean(a, b Vector) float64 {
	if len(a.values) != len(b.values) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a.values {
		d := float64(a.values[i]) - float64(b.values[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
