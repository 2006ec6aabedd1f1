// Package encode holds what the erasure codecs share: the error kinds they
// report, the shard-set conventions they accept and the Codec interface that
// gives both schemes a single call surface.
//
// A shard set is a [][]byte of fixed length. Index i < DataShards() is a data
// shard, the rest are parity. A nil or zero-length entry is absent.
package encode

import (
	"github.com/ppopth/erasure/ec/field"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration reports invalid coding parameters.
	ErrConfiguration = errors.New("invalid coding configuration")

	// ErrShape reports a shard set with the wrong number of shards or with
	// shards of mismatched or zero length.
	ErrShape = errors.New("invalid shard shape")

	// ErrInsufficientShards reports more absent shards than the code can
	// recover.
	ErrInsufficientShards = errors.New("too few shards to reconstruct")

	// ErrArithmetic reports an undefined field operation, including a
	// singular decoding matrix.
	ErrArithmetic = field.ErrArithmetic
)

// Codec is an erasure code over shard sets of TotalShards() entries.
type Codec interface {
	// DataShards returns the number of data shards.
	DataShards() int
	// ParityShards returns the number of parity shards.
	ParityShards() int
	// TotalShards returns DataShards() + ParityShards().
	TotalShards() int

	// Encode fills the parity slots from the data slots. Existing parity
	// content is overwritten, never read.
	Encode(shards [][]byte) error
	// Reconstruct fills every absent slot in place.
	Reconstruct(shards [][]byte) error
	// Verify reports whether the parity slots match the data slots.
	// A mismatch is a false result, not an error.
	Verify(shards [][]byte) (bool, error)
}

// Missing returns the indices of the absent shards in ascending order.
func Missing(shards [][]byte) []int {
	var missing []int
	for i, s := range shards {
		if len(s) == 0 {
			missing = append(missing, i)
		}
	}
	return missing
}

// ShardSize returns the common length of the present shards, or 0 when no
// shard is present.
func ShardSize(shards [][]byte) (int, error) {
	size := 0
	for i, s := range shards {
		if len(s) == 0 {
			continue
		}
		if size == 0 {
			size = len(s)
			continue
		}
		if len(s) != size {
			return 0, errors.Wrapf(ErrShape, "shard %d has %d bytes, want %d", i, len(s), size)
		}
	}
	return size, nil
}

// CheckShards validates the shard count and the lengths of the present shards
// and returns the shard size. At least one shard must be present.
func CheckShards(shards [][]byte, total int) (int, error) {
	if len(shards) != total {
		return 0, errors.Wrapf(ErrShape, "got %d shards, want %d", len(shards), total)
	}
	size, err := ShardSize(shards)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, errors.Wrap(ErrShape, "no shard present")
	}
	return size, nil
}

// CheckComplete validates that every shard is present with the same non-zero
// length and returns that length.
func CheckComplete(shards [][]byte) (int, error) {
	if len(shards) == 0 {
		return 0, errors.Wrap(ErrShape, "no shards")
	}
	size := len(shards[0])
	for i, s := range shards {
		if len(s) == 0 {
			return 0, errors.Wrapf(ErrShape, "shard %d is absent", i)
		}
		if len(s) != size {
			return 0, errors.Wrapf(ErrShape, "shard %d has %d bytes, want %d", i, len(s), size)
		}
	}
	return size, nil
}

// Buffer returns buf resliced to size when its capacity allows, or a new
// buffer otherwise. The contents are unspecified.
func Buffer(buf []byte, size int) []byte {
	if cap(buf) >= size {
		return buf[:size]
	}
	return make([]byte, size)
}
