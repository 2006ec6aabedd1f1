package rs

import (
	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/field"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Encode computes the parity shards from the data shards.
//
// shards must hold k+m entries. The first k are the data shards and must all
// be present with the same non-zero length. Parity entries are overwritten:
// an absent entry is given a buffer (reusing its capacity when large enough),
// a present one must already have the shard length.
//
// For each parity shard P[i]:
//
//	P[i][b] = Σ(j=0 to k-1) G[k+i][j] * D[j][b]
//
// for every byte offset b, all operations in GF(2^8).
func (s *Session) Encode(shards [][]byte) error {
	if len(shards) != s.TotalShards() {
		return errors.Wrapf(encode.ErrShape, "got %d shards, want %d", len(shards), s.TotalShards())
	}
	size, err := encode.CheckComplete(shards[:s.dataShards])
	if err != nil {
		return errors.Wrap(err, "data shards")
	}

	parity := shards[s.dataShards:]
	for i, p := range parity {
		switch len(p) {
		case 0:
			parity[i] = encode.Buffer(p, size)
		case size:
		default:
			return errors.Wrapf(encode.ErrShape, "parity shard %d has %d bytes, want %d", s.dataShards+i, len(p), size)
		}
	}
	if s.parityShards == 0 {
		return nil
	}

	return s.codeShards(s.parity, shards[:s.dataShards], parity, size)
}

// EncodeParity takes k data shards and returns m newly allocated parity shards.
func (s *Session) EncodeParity(data [][]byte) ([][]byte, error) {
	if len(data) != s.dataShards {
		return nil, errors.Wrapf(encode.ErrShape, "got %d data shards, want %d", len(data), s.dataShards)
	}
	shards := make([][]byte, s.TotalShards())
	copy(shards, data)
	if err := s.Encode(shards); err != nil {
		return nil, err
	}
	return shards[s.dataShards:], nil
}

// EncodeIdx adds the contribution of data shard idx to the parity shards.
//
// Starting from zeroed parity buffers and calling EncodeIdx once for every
// index 0..k-1, in any order, yields the same parity as Encode. This lets a
// caller encode shards as they become available without holding all of them.
func (s *Session) EncodeIdx(dataShard []byte, idx int, parity [][]byte) error {
	if idx < 0 || idx >= s.dataShards {
		return errors.Wrapf(encode.ErrShape, "data shard index %d out of range [0, %d)", idx, s.dataShards)
	}
	if len(parity) != s.parityShards {
		return errors.Wrapf(encode.ErrShape, "got %d parity shards, want %d", len(parity), s.parityShards)
	}
	if len(dataShard) == 0 {
		return errors.Wrapf(encode.ErrShape, "data shard %d is empty", idx)
	}
	for i, p := range parity {
		if len(p) != len(dataShard) {
			return errors.Wrapf(encode.ErrShape, "parity shard %d has %d bytes, want %d", s.dataShards+i, len(p), len(dataShard))
		}
	}

	return s.forEachRange(len(dataShard), func(start, end int) error {
		in := dataShard[start:end]
		for i, p := range parity {
			field.MulAddSlice(s.parity[i][idx], in, p[start:end])
		}
		return nil
	})
}

// codeShards sets out[i] = Σ matrix[i][j] * in[j] over the first size bytes,
// splitting the byte range across goroutines when it is large enough.
func (s *Session) codeShards(matrix field.Matrix, in, out [][]byte, size int) error {
	return s.forEachRange(size, func(start, end int) error {
		codeRange(matrix, in, out, start, end)
		return nil
	})
}

// codeRange codes bytes [start, end) of every output.
func codeRange(matrix field.Matrix, in, out [][]byte, start, end int) {
	for i, row := range matrix {
		dst := out[i][start:end]
		for j, c := range row {
			if j == 0 {
				field.MulSlice(c, in[j][start:end], dst)
			} else {
				field.MulAddSlice(c, in[j][start:end], dst)
			}
		}
	}
}

// forEachRange calls fn on consecutive byte ranges covering [0, size).
// Every byte column is independent, so ranges run concurrently with no
// ordering between them. It returns the first error reported by fn.
func (s *Session) forEachRange(size int, fn func(start, end int) error) error {
	workers := s.config.MaxGoroutines
	if workers <= 1 || size < 2*s.config.MinSplitSize {
		return fn(0, size)
	}

	per := (size + workers - 1) / workers
	if per < s.config.MinSplitSize {
		per = s.config.MinSplitSize
	}
	// Keep ranges 64-byte aligned.
	per = (per + 63) &^ 63

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < size; start += per {
		start := start // per-iteration copy; go.mod targets go1.21 loop semantics
		end := min(start+per, size)
		g.Go(func() error {
			return fn(start, end)
		})
	}
	return g.Wait()
}
