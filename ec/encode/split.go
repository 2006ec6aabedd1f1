package encode

import (
	"github.com/pkg/errors"
)

// ShardLength returns the shard size needed to hold dataSize bytes in k shards.
func ShardLength(dataSize, k int) int {
	return (dataSize + k - 1) / k
}

// Split cuts data into k equal shards, zero-padding the last ones. The shards
// are freshly allocated; data is not retained.
func Split(data []byte, k int) ([][]byte, error) {
	if k < 1 {
		return nil, errors.Wrapf(ErrConfiguration, "data shards %d", k)
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrShape, "no data to split")
	}

	size := ShardLength(len(data), k)
	buf := make([]byte, size*k)
	copy(buf, data)

	shards := make([][]byte, k)
	for i := range shards {
		shards[i] = buf[i*size : (i+1)*size : (i+1)*size]
	}
	return shards, nil
}

// Join concatenates the first k shards and trims the result to size bytes.
func Join(shards [][]byte, k, size int) ([]byte, error) {
	if k < 1 || len(shards) < k {
		return nil, errors.Wrapf(ErrShape, "need %d data shards, got %d", k, len(shards))
	}
	if size < 0 {
		return nil, errors.Wrapf(ErrShape, "negative size %d", size)
	}

	out := make([]byte, 0, size)
	for i := 0; i < k && len(out) < size; i++ {
		if len(shards[i]) == 0 {
			return nil, errors.Wrapf(ErrShape, "data shard %d is absent", i)
		}
		remaining := size - len(out)
		if remaining >= len(shards[i]) {
			out = append(out, shards[i]...)
		} else {
			out = append(out, shards[i][:remaining]...)
		}
	}
	if len(out) < size {
		return nil, errors.Wrapf(ErrShape, "data shards hold %d bytes, want %d", len(out), size)
	}
	return out, nil
}
