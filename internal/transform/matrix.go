// Package transform converts 4x4 camera transforms between the wire
// protocol's Y-up convention and the host application's up-axis convention.
package transform

// Matrix is a row-major 4x4 affine transform: rotation/scale in the
// upper-left 3x3, translation in the last row, last column (0,0,0,1).
type Matrix [16]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m*other (row-vector convention, other applied after m).
func (m Matrix) Mul(other Matrix) Matrix {
	var out Matrix
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * other[k*4+col]
			}
			out[row*4+col] = sum
		}
	}
	return out
}

// Basis swaps between the protocol's Y-up frame and a Z-up host frame.
// The two matrices are inverses of each other.
var (
	yUpToZUp = Matrix{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, -1, 0, 0,
		0, 0, 0, 1,
	}
	zUpToYUp = Matrix{
		1, 0, 0, 0,
		0, 0, -1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}
)

// Convention converts matrices between the wire convention (always Y-up)
// and the host convention, captured once per connection.
type Convention struct {
	hostZUp bool
}

// NewConvention returns a Convention for a host whose up axis is Z when
// hostZUp is true, Y otherwise.
func NewConvention(hostZUp bool) Convention {
	return Convention{hostZUp: hostZUp}
}

// ToHost rotates a wire-convention (Y-up) matrix into the host frame.
func (c Convention) ToHost(m Matrix) Matrix {
	if !c.hostZUp {
		return m
	}
	return m.Mul(yUpToZUp)
}

// FromHost rotates a host-frame matrix into the wire convention (Y-up).
func (c Convention) FromHost(m Matrix) Matrix {
	if !c.hostZUp {
		return m
	}
	return m.Mul(zUpToYUp)
}
