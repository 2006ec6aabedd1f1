package rs

import (
	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/field"

	"github.com/pkg/errors"
)

// Reconstruct fills every absent shard, data and parity, in place.
//
// At least k shards must be present, all with the same length. Absent
// entries are given buffers, reusing their capacity when it is large enough.
// Present shards are never modified.
func (s *Session) Reconstruct(shards [][]byte) error {
	return s.reconstruct(shards, false)
}

// ReconstructData fills only the absent data shards in place. Absent parity
// shards stay absent.
func (s *Session) ReconstructData(shards [][]byte) error {
	return s.reconstruct(shards, true)
}

// ReconstructShards returns a full shard set rebuilt from shards, leaving the
// caller's slice untouched. Present shards are shared with the result, absent
// ones are newly allocated.
func (s *Session) ReconstructShards(shards [][]byte) ([][]byte, error) {
	out := make([][]byte, len(shards))
	for i, shard := range shards {
		if len(shard) != 0 {
			out[i] = shard
		}
	}
	if err := s.Reconstruct(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) reconstruct(shards [][]byte, dataOnly bool) error {
	if len(shards) != s.TotalShards() {
		return errors.Wrapf(encode.ErrShape, "got %d shards, want %d", len(shards), s.TotalShards())
	}
	missing := encode.Missing(shards)
	if len(missing) > s.parityShards {
		return errors.Wrapf(encode.ErrInsufficientShards, "%d of %d shards present, need %d",
			s.TotalShards()-len(missing), s.TotalShards(), s.dataShards)
	}
	// At least k >= 1 shards are present from here on.
	size, err := encode.CheckShards(shards, s.TotalShards())
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	var missingData, missingParity []int
	for _, idx := range missing {
		if idx < s.dataShards {
			missingData = append(missingData, idx)
		} else {
			missingParity = append(missingParity, idx)
		}
	}

	if len(missingData) > 0 {
		// The first k present shards in index order.
		valid := make([]int, 0, s.dataShards)
		for i := 0; len(valid) < s.dataShards; i++ {
			if len(shards[i]) != 0 {
				valid = append(valid, i)
			}
		}

		decode, err := s.decodeMatrix(missing, valid)
		if err != nil {
			return err
		}

		in := make([][]byte, len(valid))
		for i, idx := range valid {
			in[i] = shards[idx]
		}
		out := make([][]byte, len(missingData))
		for i, idx := range missingData {
			shards[idx] = encode.Buffer(shards[idx], size)
			out[i] = shards[idx]
		}
		if err := s.codeShards(decode.SelectRows(missingData), in, out, size); err != nil {
			return err
		}
	}

	if dataOnly || len(missingParity) == 0 {
		return nil
	}

	rows := make([]int, len(missingParity))
	out := make([][]byte, len(missingParity))
	for i, idx := range missingParity {
		rows[i] = idx
		shards[idx] = encode.Buffer(shards[idx], size)
		out[i] = shards[idx]
	}
	return s.codeShards(s.generator.SelectRows(rows), shards[:s.dataShards], out, size)
}

// decodeMatrix returns the inverse of the generator rows in valid. Row j of
// the result rebuilds data shard j from the valid shards.
func (s *Session) decodeMatrix(missing, valid []int) (field.Matrix, error) {
	var key []byte
	if s.cache != nil {
		key = s.cacheKey(missing)
		if m, ok := s.cache.Get(key); ok {
			return m, nil
		}
	}

	inv, err := field.InvertMatrix(s.generator.SelectRows(valid))
	if err != nil {
		return nil, errors.Wrapf(err, "invert decoding matrix for rows %v", valid)
	}
	log.Debugf("inverted decoding matrix for missing shards %v", missing)

	if s.cache != nil {
		s.cache.Set(key, inv)
	}
	return inv, nil
}
