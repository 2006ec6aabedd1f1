package rs

import (
	"math/rand"

	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/field"

	"github.com/pkg/errors"
)

const (
	// Up to this many k-row subsets the generator is checked exhaustively.
	exhaustiveCheckLimit = 4096
	// Otherwise this many seeded random subsets are checked on top of the
	// contiguous windows.
	sampledChecks = 32
)

// buildGenerator creates the systematic generator matrix G = [I | P]
//
//  1. Create a Vandermonde matrix V of size n×k (n = k + m) with evaluation
//     points 0, 1, ..., n-1. Distinct points make any k rows of V independent.
//  2. Invert the top k×k submatrix of V.
//  3. G = V × top⁻¹. The first k rows are the identity, and because top⁻¹ is
//     invertible any k rows of G are still independent.
//
// The result only depends on (k, m).
func buildGenerator(k, m int) (field.Matrix, error) {
	n := k + m
	if k < 1 || m < 0 || n > field.Order {
		return nil, errors.Wrapf(encode.ErrConfiguration, "data shards %d, parity shards %d", k, m)
	}

	vandermonde := field.Vandermonde(n, k)
	top := vandermonde.SubMatrix(0, 0, k, k)
	topInv, err := field.InvertMatrix(top)
	if err != nil {
		return nil, errors.Wrap(err, "invert top of vandermonde matrix")
	}
	return field.MatrixMultiply(vandermonde, topInv)
}

// checkGenerator tests that any k rows of the generator are linearly
// independent. Small shapes are checked exhaustively; larger ones check every
// contiguous window of k rows plus a deterministic sample of other subsets.
func checkGenerator(g field.Matrix, k int) error {
	n := g.Rows()
	if !g.SubMatrix(0, 0, k, k).Equal(field.Identity(k)) {
		return errors.Wrap(encode.ErrConfiguration, "generator does not start with the identity")
	}
	if n == k {
		return nil
	}

	check := func(rows []int) error {
		if !field.IsLinearlyIndependent(g.SelectRows(rows)) {
			return errors.Wrapf(encode.ErrConfiguration, "generator rows %v are dependent", rows)
		}
		return nil
	}

	if binomial(n, k, exhaustiveCheckLimit) <= exhaustiveCheckLimit {
		rows := make([]int, k)
		for i := range rows {
			rows[i] = i
		}
		for {
			if err := check(rows); err != nil {
				return err
			}
			if !nextCombination(rows, n) {
				return nil
			}
		}
	}

	rows := make([]int, k)
	for start := 0; start+k <= n; start++ {
		for i := range rows {
			rows[i] = start + i
		}
		if err := check(rows); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(int64(n)<<16 | int64(k)))
	for i := 0; i < sampledChecks; i++ {
		perm := rng.Perm(n)[:k]
		if err := check(perm); err != nil {
			return err
		}
	}
	return nil
}

// binomial returns C(n, k), or limit+1 once the value exceeds limit.
func binomial(n, k, limit int) int {
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 1; i <= k; i++ {
		c = c * (n - k + i) / i
		if c > limit {
			return limit + 1
		}
	}
	return c
}

// nextCombination advances rows to the next k-subset of [0, n) in
// lexicographic order. It returns false after the last one.
func nextCombination(rows []int, n int) bool {
	k := len(rows)
	i := k - 1
	for i >= 0 && rows[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	rows[i]++
	for j := i + 1; j < k; j++ {
		rows[j] = rows[j-1] + 1
	}
	return true
}
