package rs

import (
	"bytes"

	"github.com/ppopth/erasure/ec/encode"

	"github.com/pkg/errors"
)

// Parity is recomputed this many bytes at a time per worker.
const verifyBlockSize = 32 << 10

var errParityMismatch = errors.New("parity mismatch")

// Verify reports whether the parity shards match the data shards.
// Every shard must be present with the same length. A mismatch is reported
// as false with a nil error.
func (s *Session) Verify(shards [][]byte) (bool, error) {
	if len(shards) != s.TotalShards() {
		return false, errors.Wrapf(encode.ErrShape, "got %d shards, want %d", len(shards), s.TotalShards())
	}
	size, err := encode.CheckComplete(shards)
	if err != nil {
		return false, err
	}
	if s.parityShards == 0 {
		return true, nil
	}

	data := shards[:s.dataShards]
	parity := shards[s.dataShards:]
	err = s.forEachRange(size, func(start, end int) error {
		scratch := make([][]byte, s.parityShards)
		for i := range scratch {
			scratch[i] = make([]byte, min(verifyBlockSize, end-start))
		}
		for off := start; off < end; off += verifyBlockSize {
			n := min(verifyBlockSize, end-off)
			out := make([][]byte, len(scratch))
			for i := range scratch {
				out[i] = scratch[i][:n]
			}
			in := make([][]byte, len(data))
			for j, d := range data {
				in[j] = d[off : off+n]
			}
			codeRange(s.parity, in, out, 0, n)
			for i, p := range parity {
				if !bytes.Equal(out[i], p[off:off+n]) {
					return errParityMismatch
				}
			}
		}
		return nil
	})
	if errors.Is(err, errParityMismatch) {
		return false, nil
	}
	return err == nil, err
}
