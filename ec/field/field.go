// Package field implements arithmetic over the Galois field GF(2^8) and
// matrices whose entries are elements of that field.
//
// Elements are plain bytes. Addition is XOR; multiplication goes through
// log/exp tables built once at package initialisation, since the coders call
// it once per byte per matrix coefficient.
package field

import (
	"github.com/pkg/errors"
)

const (
	// Order is the number of elements in the field.
	Order = 256

	// Polynomial is the primitive polynomial x^8 + x^4 + x^3 + x^2 + 1 that
	// defines the field.
	Polynomial = 0x11D

	// Generator is the primitive element the log/exp tables are built from.
	Generator = 2
)

var (
	// ErrArithmetic is returned (wrapped) by every operation that has no
	// defined result in the field.
	ErrArithmetic = errors.New("field: arithmetic error")

	// ErrDivisionByZero reports a division by, or inversion of, zero.
	ErrDivisionByZero = errors.WithMessage(ErrArithmetic, "division by zero")

	// ErrSingular reports a square matrix without an inverse.
	ErrSingular = errors.WithMessage(ErrArithmetic, "matrix is singular")
)

var (
	// logTable[0] is unused.
	logTable [Order]byte
	// expTable is doubled so log[a]+log[b] indexes it without a modulo.
	expTable [2*Order - 2]byte
	// mulTable[c] is the full row of products c*x, used by the slice kernels.
	mulTable [Order][Order]byte
)

func init() {
	x := 1
	for i := 0; i < Order-1; i++ {
		expTable[i] = byte(x)
		expTable[i+Order-1] = byte(x)
		logTable[x] = byte(i)

		// Multiply by the generator (x) and reduce.
		x <<= 1
		if x&Order != 0 {
			x ^= Polynomial
		}
	}

	for a := 1; a < Order; a++ {
		for b := 1; b < Order; b++ {
			mulTable[a][b] = expTable[int(logTable[a])+int(logTable[b])]
		}
	}
}

// Add returns a + b.
func Add(a, b byte) byte {
	return a ^ b
}

// Sub returns a - b, which is the same as Add in characteristic 2.
func Sub(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b.
func Mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// Div returns a / b. Dividing by zero fails with ErrDivisionByZero.
func Div(a, b byte) (byte, error) {
	if b == 0 {
		return 0, errors.Wrapf(ErrDivisionByZero, "%#02x / 0", a)
	}
	if a == 0 {
		return 0, nil
	}
	return expTable[int(logTable[a])+Order-1-int(logTable[b])], nil
}

// Inv returns the multiplicative inverse of a. Zero has none.
func Inv(a byte) (byte, error) {
	if a == 0 {
		return 0, errors.Wrap(ErrDivisionByZero, "inverse of 0")
	}
	return expTable[Order-1-int(logTable[a])], nil
}

// Exp returns a raised to the n-th power, with 0^0 = 1.
func Exp(a byte, n int) byte {
	if n == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	l := (int(logTable[a]) * n) % (Order - 1)
	if l < 0 {
		l += Order - 1
	}
	return expTable[l]
}

// Log returns the discrete logarithm of a to the base Generator.
func Log(a byte) (int, error) {
	if a == 0 {
		return 0, errors.Wrap(ErrArithmetic, "logarithm of 0")
	}
	return int(logTable[a]), nil
}
