// Package xor implements single-parity erasure coding: the parity shard is the
// XOR of all data shards, so any one lost shard equals the XOR of the others.
package xor

import (
	"bytes"

	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/field"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
)

var log = logging.Logger("xor")

// EncodeXor returns the XOR of the data shards. All shards must be present
// with the same non-zero length.
func EncodeXor(data [][]byte) ([]byte, error) {
	size, err := encode.CheckComplete(data)
	if err != nil {
		return nil, err
	}
	parity := make([]byte, size)
	copy(parity, data[0])
	for _, d := range data[1:] {
		field.XorSlice(d, parity)
	}
	return parity, nil
}

// ReconstructXor returns parity XORed with every present data shard. When
// exactly one data shard is absent the result is that shard. When none is
// absent the result is all zeros for consistent input.
func ReconstructXor(data [][]byte, parity []byte) ([]byte, error) {
	if len(parity) == 0 {
		return nil, errors.Wrap(encode.ErrShape, "parity shard is absent")
	}
	if missing := encode.Missing(data); len(missing) > 1 {
		return nil, errors.Wrapf(encode.ErrInsufficientShards, "data shards %v are absent, at most one can be recovered", missing)
	}

	out := make([]byte, len(parity))
	copy(out, parity)
	for i, d := range data {
		if len(d) == 0 {
			continue
		}
		if len(d) != len(parity) {
			return nil, errors.Wrapf(encode.ErrShape, "data shard %d has %d bytes, parity has %d", i, len(d), len(parity))
		}
		field.XorSlice(d, out)
	}
	return out, nil
}

// Codec is the XOR code as an encode.Codec over k+1 shards, the last one
// being the parity.
type Codec struct {
	dataShards int
}

var _ encode.Codec = (*Codec)(nil)

// New returns a codec for k data shards.
func New(k int) (*Codec, error) {
	if k < 1 {
		return nil, errors.Wrapf(encode.ErrConfiguration, "data shards %d", k)
	}
	log.Debugf("new xor codec data=%d", k)
	return &Codec{dataShards: k}, nil
}

// DataShards returns the number of data shards
func (c *Codec) DataShards() int { return c.dataShards }

// ParityShards returns the number of parity shards, always 1
func (c *Codec) ParityShards() int { return 1 }

// TotalShards returns the number of data plus parity shards
func (c *Codec) TotalShards() int { return c.dataShards + 1 }

// Encode overwrites the parity slot with the XOR of the data slots.
func (c *Codec) Encode(shards [][]byte) error {
	if len(shards) != c.TotalShards() {
		return errors.Wrapf(encode.ErrShape, "got %d shards, want %d", len(shards), c.TotalShards())
	}
	size, err := encode.CheckComplete(shards[:c.dataShards])
	if err != nil {
		return errors.Wrap(err, "data shards")
	}

	p := shards[c.dataShards]
	if len(p) != 0 && len(p) != size {
		return errors.Wrapf(encode.ErrShape, "parity shard has %d bytes, want %d", len(p), size)
	}
	p = encode.Buffer(p, size)
	copy(p, shards[0])
	for _, d := range shards[1:c.dataShards] {
		field.XorSlice(d, p)
	}
	shards[c.dataShards] = p
	return nil
}

// Reconstruct restores the one absent slot, data or parity, in place.
func (c *Codec) Reconstruct(shards [][]byte) error {
	if len(shards) != c.TotalShards() {
		return errors.Wrapf(encode.ErrShape, "got %d shards, want %d", len(shards), c.TotalShards())
	}
	missing := encode.Missing(shards)
	if len(missing) > 1 {
		return errors.Wrapf(encode.ErrInsufficientShards, "shards %v are absent, at most one can be recovered", missing)
	}
	size, err := encode.CheckShards(shards, c.TotalShards())
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	// Every slot is the XOR of all the others, parity included.
	idx := missing[0]
	out := encode.Buffer(shards[idx], size)
	clear(out)
	for i, s := range shards {
		if i != idx {
			field.XorSlice(s, out)
		}
	}
	shards[idx] = out
	log.Debugf("recovered shard %d", idx)
	return nil
}

// Verify reports whether the parity slot is the XOR of the data slots.
func (c *Codec) Verify(shards [][]byte) (bool, error) {
	if len(shards) != c.TotalShards() {
		return false, errors.Wrapf(encode.ErrShape, "got %d shards, want %d", len(shards), c.TotalShards())
	}
	if _, err := encode.CheckComplete(shards); err != nil {
		return false, err
	}
	parity, err := EncodeXor(shards[:c.dataShards])
	if err != nil {
		return false, err
	}
	return bytes.Equal(parity, shards[c.dataShards]), nil
}
