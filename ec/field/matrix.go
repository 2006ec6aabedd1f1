package field

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Matrix operations over GF(2^8)

// Matrix is a row-major matrix of field elements. Every row has the same length.
type Matrix [][]byte

// NewMatrix returns a zero matrix with the given dimensions.
func NewMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	data := make([]byte, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// Identity returns the n×n identity matrix.
func Identity(n int) Matrix {
	m := NewMatrix(n, n)
	for i := range m {
		m[i][i] = 1
	}
	return m
}

// Vandermonde returns the rows×cols matrix with entry (r, c) = r^c.
// The evaluation points 0..rows-1 are distinct field elements as long as
// rows <= Order, so any cols rows of the result are linearly independent.
func Vandermonde(rows, cols int) Matrix {
	m := NewMatrix(rows, cols)
	for r := range m {
		for c := range m[r] {
			m[r][c] = Exp(byte(r), c)
		}
	}
	return m
}

// Rows returns the number of rows.
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the number of columns.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// IsSquare reports whether m has as many rows as columns.
func (m Matrix) IsSquare() bool {
	return m.Rows() == m.Cols()
}

// Clone returns a deep copy of m.
func (m Matrix) Clone() Matrix {
	c := NewMatrix(m.Rows(), m.Cols())
	for i := range m {
		copy(c[i], m[i])
	}
	return c
}

// Equal reports whether m and o have the same shape and entries.
func (m Matrix) Equal(o Matrix) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if string(m[i]) != string(o[i]) {
			return false
		}
	}
	return true
}

// SubMatrix returns a copy of rows [rmin, rmax) and columns [cmin, cmax).
func (m Matrix) SubMatrix(rmin, cmin, rmax, cmax int) Matrix {
	s := NewMatrix(rmax-rmin, cmax-cmin)
	for r := rmin; r < rmax; r++ {
		copy(s[r-rmin], m[r][cmin:cmax])
	}
	return s
}

// SelectRows returns a copy of the rows at the given indices, in order.
func (m Matrix) SelectRows(indices []int) Matrix {
	s := NewMatrix(len(indices), m.Cols())
	for i, idx := range indices {
		copy(s[i], m[idx])
	}
	return s
}

// String formats the matrix one row per line, entries in hex.
func (m Matrix) String() string {
	var sb strings.Builder
	for i, row := range m {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02x", v)
		}
	}
	return sb.String()
}

// MatrixMultiply computes A × B. A is m×n, B is n×p, the result is m×p.
// An empty operand gives an empty result of the matching shape.
func MatrixMultiply(A, B Matrix) (Matrix, error) {
	C := NewMatrix(len(A), B.Cols())
	for i, row := range A {
		if len(row) != len(B) {
			return nil, errors.Errorf("field: matrix dimensions mismatch: A is %d×%d, B is %d×%d",
				len(A), len(row), len(B), B.Cols())
		}
		// C[i] = Σ A[i][k] * B[k]
		for k, coef := range row {
			MulAddSlice(coef, B[k], C[i])
		}
	}
	return C, nil
}

// InvertMatrix computes the inverse of a square matrix using Gauss-Jordan
// elimination. A zero at the natural pivot position is handled by swapping in
// a lower row; a column without any non-zero pivot candidate means the matrix
// is singular and ErrSingular is returned. A is not modified.
func InvertMatrix(A Matrix) (Matrix, error) {
	n := len(A)
	for i, row := range A {
		if len(row) != n {
			return nil, errors.Errorf("field: cannot invert non-square matrix (row %d has %d columns, want %d)", i, len(row), n)
		}
	}

	inv := Identity(n)
	B := A.Clone()

	for i := 0; i < n; i++ {
		// Find pivot: look for a non-zero element in column i
		pivot := -1
		for k := i; k < n; k++ {
			if B[k][i] != 0 {
				pivot = k
				break
			}
		}
		if pivot == -1 {
			return nil, errors.Wrapf(ErrSingular, "no pivot in column %d of %d×%d matrix", i, n, n)
		}

		if pivot != i {
			B[i], B[pivot] = B[pivot], B[i]
			inv[i], inv[pivot] = inv[pivot], inv[i]
		}

		// Normalize the pivot row
		if p := B[i][i]; p != 1 {
			pinv := expTable[Order-1-int(logTable[p])]
			MulSlice(pinv, B[i], B[i])
			MulSlice(pinv, inv[i], inv[i])
		}

		// Eliminate column i from every other row
		for k := 0; k < n; k++ {
			if k == i || B[k][i] == 0 {
				continue
			}
			factor := B[k][i]
			MulAddSlice(factor, B[i], B[k])
			MulAddSlice(factor, inv[i], inv[k])
		}
	}
	return inv, nil
}

// IsLinearlyIndependent checks if the rows of vectors are linearly independent.
func IsLinearlyIndependent(vectors Matrix) bool {
	n := len(vectors)
	if n == 0 {
		return true // empty set is vacuously independent
	}
	m := len(vectors[0])
	if n > m {
		return false
	}

	A := vectors.Clone()

	// Forward elimination only; rank is all we need.
	rank := 0
	for col := 0; col < m && rank < n; col++ {
		pivot := -1
		for i := rank; i < n; i++ {
			if A[i][col] != 0 {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			continue
		}
		if pivot != rank {
			A[rank], A[pivot] = A[pivot], A[rank]
		}

		pinv := expTable[Order-1-int(logTable[A[rank][col]])]
		for i := rank + 1; i < n; i++ {
			if A[i][col] == 0 {
				continue
			}
			factor := Mul(A[i][col], pinv)
			MulAddSlice(factor, A[rank][col:], A[i][col:])
		}
		rank++
	}

	return rank == n
}
