package rs

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/ppopth/erasure/ec/encode"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// randomShards returns k random data shards followed by m absent parity slots.
func randomShards(rng *rand.Rand, k, m, size int) [][]byte {
	shards := make([][]byte, k+m)
	for i := 0; i < k; i++ {
		shards[i] = make([]byte, size)
		rng.Read(shards[i])
	}
	return shards
}

func cloneShards(shards [][]byte) [][]byte {
	out := make([][]byte, len(shards))
	for i, s := range shards {
		if s != nil {
			out[i] = append([]byte(nil), s...)
		}
	}
	return out
}

func encodedShards(t testing.TB, s *Session, seed int64, size int) [][]byte {
	shards := randomShards(rand.New(rand.NewSource(seed)), s.DataShards(), s.ParityShards(), size)
	require.NoError(t, s.Encode(shards))
	return shards
}

func TestNewSession(t *testing.T) {
	s, err := New(4, 2)
	require.NoError(t, err)
	require.Equal(t, 4, s.DataShards())
	require.Equal(t, 2, s.ParityShards())
	require.Equal(t, 6, s.TotalShards())

	g := s.GeneratorMatrix()
	require.Equal(t, 6, g.Rows())
	require.Equal(t, 4, g.Cols())

	// The copy is not shared with the session
	g[4][0] ^= 1
	require.NotEqual(t, g[4][0], s.GeneratorMatrix()[4][0])

	for _, tc := range []struct{ k, m int }{
		{0, 1}, {-1, 2}, {3, -1}, {200, 57}, {256, 1},
	} {
		_, err := New(tc.k, tc.m)
		require.True(t, errors.Is(err, encode.ErrConfiguration), "k=%d m=%d: got %v", tc.k, tc.m, err)
	}

	_, err = New(255, 1, WithoutGeneratorCheck())
	require.NoError(t, err)
	_, err = New(256, 0, WithoutGeneratorCheck())
	require.NoError(t, err)
}

func TestNewSessionOptions(t *testing.T) {
	for _, opt := range []Option{
		WithMaxGoroutines(0),
		WithMinSplitSize(-1),
		WithInversionCache(nil),
	} {
		_, err := New(2, 1, opt)
		require.True(t, errors.Is(err, encode.ErrConfiguration), "got %v", err)
	}

	s, err := New(2, 1, WithoutInversionCache())
	require.NoError(t, err)
	require.Nil(t, s.cache)

	cache := NewTreeCache()
	s, err = New(2, 1, WithoutInversionCache(), WithInversionCache(cache))
	require.NoError(t, err)
	require.Same(t, cache, s.cache)
}

func TestEncodeReconstructScenario(t *testing.T) {
	s, err := New(4, 2)
	require.NoError(t, err)

	shards := encodedShards(t, s, 1, 4096)
	original := cloneShards(shards)

	shards[0] = nil
	shards[4] = nil
	require.NoError(t, s.Reconstruct(shards))
	require.Equal(t, original, shards)
}

func TestEncodeReconstructLarge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 16 MiB shards in short mode")
	}
	s, err := New(4, 2)
	require.NoError(t, err)

	shards := encodedShards(t, s, 2, 16<<20)
	original := cloneShards(shards)

	shards[1] = nil
	shards[5] = nil
	require.NoError(t, s.Reconstruct(shards))
	require.True(t, bytes.Equal(original[1], shards[1]))
	require.True(t, bytes.Equal(original[5], shards[5]))
}

// Every loss pattern of up to m shards is recoverable.
func TestReconstructAllLossPatterns(t *testing.T) {
	for _, tc := range []struct{ k, m int }{
		{1, 1}, {1, 3}, {2, 2}, {3, 2}, {4, 2}, {5, 3}, {4, 4}, {10, 4},
	} {
		t.Run(fmt.Sprintf("%d+%d", tc.k, tc.m), func(t *testing.T) {
			s, err := New(tc.k, tc.m)
			require.NoError(t, err)
			shards := encodedShards(t, s, int64(tc.k*100+tc.m), 61)
			n := tc.k + tc.m

			for lost := 1; lost <= tc.m; lost++ {
				rows := make([]int, lost)
				for i := range rows {
					rows[i] = i
				}
				for {
					damaged := cloneShards(shards)
					for _, idx := range rows {
						damaged[idx] = nil
					}
					require.NoError(t, s.Reconstruct(damaged), "lost %v", rows)
					require.Equal(t, shards, damaged, "lost %v", rows)

					if !nextCombination(rows, n) {
						break
					}
				}
			}
		})
	}
}

func TestReconstructInsufficientShards(t *testing.T) {
	s, err := New(4, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 3, 100)

	for _, lost := range [][]int{{0, 1, 2}, {3, 4, 5}, {0, 2, 4}, {0, 1, 2, 3, 4}, {0, 1, 2, 3, 4, 5}} {
		damaged := cloneShards(shards)
		for _, idx := range lost {
			damaged[idx] = nil
		}
		err := s.Reconstruct(damaged)
		require.True(t, errors.Is(err, encode.ErrInsufficientShards), "lost %v: got %v", lost, err)
		err = s.ReconstructData(damaged)
		require.True(t, errors.Is(err, encode.ErrInsufficientShards), "lost %v: got %v", lost, err)
	}
}

// With one data shard, m+1 losses means every slot is absent.
func TestReconstructInsufficientSingleDataShard(t *testing.T) {
	for m := 0; m <= 3; m++ {
		s, err := New(1, m)
		require.NoError(t, err)

		for _, absent := range [][]byte{nil, {}} {
			shards := make([][]byte, m+1)
			for i := range shards {
				shards[i] = absent
			}
			err = s.Reconstruct(shards)
			require.True(t, errors.Is(err, encode.ErrInsufficientShards), "m=%d: got %v", m, err)
			err = s.ReconstructData(shards)
			require.True(t, errors.Is(err, encode.ErrInsufficientShards), "m=%d: got %v", m, err)
			_, err = s.ReconstructShards(shards)
			require.True(t, errors.Is(err, encode.ErrInsufficientShards), "m=%d: got %v", m, err)
		}
	}

	// One present shard is enough
	s, err := New(1, 2)
	require.NoError(t, err)
	shards := [][]byte{nil, nil, {7, 8, 9}}
	require.NoError(t, s.Reconstruct(shards))
	require.Equal(t, [][]byte{{7, 8, 9}, {7, 8, 9}, {7, 8, 9}}, shards)
}

func TestForEachRangeReturnsError(t *testing.T) {
	errRange := errors.New("range failed")
	for _, workers := range []int{1, 4} {
		s, err := New(2, 1, WithMaxGoroutines(workers), WithMinSplitSize(1))
		require.NoError(t, err)

		var mu sync.Mutex
		covered := 0
		err = s.forEachRange(1000, func(start, end int) error {
			mu.Lock()
			covered += end - start
			mu.Unlock()
			if end == 1000 {
				return errRange
			}
			return nil
		})
		require.True(t, errors.Is(err, errRange), "workers=%d: got %v", workers, err)
		require.Equal(t, 1000, covered, "workers=%d", workers)
	}
}

func TestReconstructNothingMissing(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 4, 50)
	original := cloneShards(shards)

	require.NoError(t, s.Reconstruct(shards))
	require.Equal(t, original, shards)
}

func TestReconstructData(t *testing.T) {
	s, err := New(4, 3)
	require.NoError(t, err)
	shards := encodedShards(t, s, 5, 300)
	original := cloneShards(shards)

	shards[1] = nil
	shards[2] = nil
	shards[6] = nil
	require.NoError(t, s.ReconstructData(shards))
	require.Equal(t, original[:4], shards[:4])
	require.Nil(t, shards[6])
	require.Equal(t, original[4:6], shards[4:6])

	// Only parity missing: nothing to do
	require.NoError(t, s.ReconstructData(shards))
	require.Nil(t, shards[6])
}

func TestReconstructShards(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 6, 128)

	damaged := cloneShards(shards)
	damaged[0] = nil
	damaged[3] = []byte{}

	out, err := s.ReconstructShards(damaged)
	require.NoError(t, err)
	require.Equal(t, shards, out)
	require.Nil(t, damaged[0], "input must be left untouched")
	require.Empty(t, damaged[3], "input must be left untouched")
}

func TestReconstructReusesCapacity(t *testing.T) {
	s, err := New(2, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 7, 64)
	original := cloneShards(shards)

	buf := make([]byte, 0, 128)
	shards[0] = buf
	require.NoError(t, s.Reconstruct(shards))
	require.Equal(t, original[0], shards[0])
	require.Equal(t, &buf[:1][0], &shards[0][0])
}

func TestReconstructShapeErrors(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 8, 32)

	err = s.Reconstruct(shards[:4])
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)

	damaged := cloneShards(shards)
	damaged[0] = nil
	damaged[1] = damaged[1][:31]
	err = s.Reconstruct(damaged)
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)

	// Everything absent is past the threshold, whatever the lengths
	err = s.Reconstruct(make([][]byte, 5))
	require.True(t, errors.Is(err, encode.ErrInsufficientShards), "got %v", err)
}

func TestEncodeShapeErrors(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(9))

	shards := randomShards(rng, 3, 2, 10)
	err = s.Encode(shards[:4])
	require.True(t, errors.Is(err, encode.ErrShape), "wrong count: got %v", err)

	shards = randomShards(rng, 3, 2, 10)
	shards[1] = nil
	err = s.Encode(shards)
	require.True(t, errors.Is(err, encode.ErrShape), "absent data: got %v", err)

	shards = randomShards(rng, 3, 2, 10)
	shards[2] = shards[2][:9]
	err = s.Encode(shards)
	require.True(t, errors.Is(err, encode.ErrShape), "mismatched data: got %v", err)

	shards = randomShards(rng, 3, 2, 10)
	shards[4] = make([]byte, 11)
	err = s.Encode(shards)
	require.True(t, errors.Is(err, encode.ErrShape), "mismatched parity: got %v", err)

	_, err = s.EncodeParity(shards[:2])
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)
}

func TestEncodeOverwritesParity(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 10, 40)
	want := cloneShards(shards)

	for i := 3; i < 5; i++ {
		for j := range shards[i] {
			shards[i][j] = 0xAA
		}
	}
	require.NoError(t, s.Encode(shards))
	require.Equal(t, want, shards)
}

func TestEncodeDeterministic(t *testing.T) {
	a, err := New(5, 3)
	require.NoError(t, err)
	b, err := New(5, 3)
	require.NoError(t, err)
	require.True(t, a.GeneratorMatrix().Equal(b.GeneratorMatrix()))

	require.Equal(t, encodedShards(t, a, 11, 200), encodedShards(t, b, 11, 200))
}

func TestEncodeNoParity(t *testing.T) {
	s, err := New(3, 0)
	require.NoError(t, err)
	shards := encodedShards(t, s, 12, 16)
	require.Len(t, shards, 3)

	ok, err := s.Verify(shards)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEncodeParity(t *testing.T) {
	s, err := New(4, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 13, 77)

	parity, err := s.EncodeParity(shards[:4])
	require.NoError(t, err)
	require.Equal(t, shards[4:], parity)
}

func TestEncodeIdx(t *testing.T) {
	s, err := New(5, 3)
	require.NoError(t, err)
	shards := encodedShards(t, s, 14, 500)

	parity := make([][]byte, 3)
	for i := range parity {
		parity[i] = make([]byte, 500)
	}
	// Order does not matter
	for _, idx := range []int{3, 0, 4, 1, 2} {
		require.NoError(t, s.EncodeIdx(shards[idx], idx, parity))
	}
	require.Equal(t, shards[5:], parity)
}

func TestEncodeIdxErrors(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)
	parity := [][]byte{make([]byte, 8), make([]byte, 8)}

	for _, idx := range []int{-1, 3} {
		err := s.EncodeIdx(make([]byte, 8), idx, parity)
		require.True(t, errors.Is(err, encode.ErrShape), "idx %d: got %v", idx, err)
	}
	err = s.EncodeIdx(make([]byte, 8), 0, parity[:1])
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)
	err = s.EncodeIdx(make([]byte, 7), 0, parity)
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)
	err = s.EncodeIdx(nil, 0, parity)
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)
}

// The progressive demo: 3 data shards of 4 bytes, 2 parity, shards 0 and 4 lost.
func TestEncodeIdxScenario(t *testing.T) {
	s, err := New(3, 2)
	require.NoError(t, err)

	data := [][]byte{{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9, 10, 11}}
	parity := [][]byte{make([]byte, 4), make([]byte, 4)}
	for idx, d := range data {
		require.NoError(t, s.EncodeIdx(d, idx, parity))
	}

	shards := [][]byte{nil, data[1], data[2], parity[0], nil}
	require.NoError(t, s.Reconstruct(shards))
	require.Equal(t, data[0], shards[0])
	require.Equal(t, parity[1], shards[4])
}

func TestVerify(t *testing.T) {
	s, err := New(4, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 15, 100<<10)

	ok, err := s.Verify(shards)
	require.NoError(t, err)
	require.True(t, ok)

	for _, idx := range []int{0, 3, 4, 5} {
		damaged := cloneShards(shards)
		damaged[idx][len(damaged[idx])-1] ^= 0x01
		ok, err := s.Verify(damaged)
		require.NoError(t, err)
		require.False(t, ok, "flipped a bit in shard %d", idx)
	}

	damaged := cloneShards(shards)
	damaged[2] = nil
	_, err = s.Verify(damaged)
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)

	_, err = s.Verify(shards[:5])
	require.True(t, errors.Is(err, encode.ErrShape), "got %v", err)
}

func TestParallelMatchesSerial(t *testing.T) {
	serial, err := New(6, 3, WithMaxGoroutines(1))
	require.NoError(t, err)
	parallel, err := New(6, 3, WithMaxGoroutines(8), WithMinSplitSize(1))
	require.NoError(t, err)

	for _, size := range []int{1, 63, 64, 1000, 4097} {
		want := encodedShards(t, serial, int64(size), size)
		got := encodedShards(t, parallel, int64(size), size)
		require.Equal(t, want, got, "size %d", size)

		damaged := cloneShards(got)
		damaged[0], damaged[4], damaged[8] = nil, nil, nil
		require.NoError(t, parallel.Reconstruct(damaged))
		require.Equal(t, want, damaged, "size %d", size)

		ok, err := parallel.Verify(got)
		require.NoError(t, err)
		require.True(t, ok)

		got[2][size-1] ^= 0x80
		ok, err = parallel.Verify(got)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestCachedMatchesUncached(t *testing.T) {
	cached, err := New(5, 3)
	require.NoError(t, err)
	uncached, err := New(5, 3, WithoutInversionCache())
	require.NoError(t, err)
	shards := encodedShards(t, cached, 16, 90)

	for round := 0; round < 2; round++ {
		for _, lost := range [][]int{{0}, {1, 2}, {0, 6, 7}, {2, 3, 4}} {
			a, b := cloneShards(shards), cloneShards(shards)
			for _, idx := range lost {
				a[idx], b[idx] = nil, nil
			}
			require.NoError(t, cached.Reconstruct(a))
			require.NoError(t, uncached.Reconstruct(b))
			require.Equal(t, shards, a)
			require.Equal(t, shards, b)
		}
	}
	require.Equal(t, 4, cached.cache.(*TreeCache).Len())
}

func TestConcurrentReconstruct(t *testing.T) {
	s, err := New(4, 2)
	require.NoError(t, err)
	shards := encodedShards(t, s, 17, 256)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			damaged := cloneShards(shards)
			damaged[g%6] = nil
			damaged[(g+1)%6] = nil
			if err := s.Reconstruct(damaged); err != nil {
				t.Error(err)
				return
			}
			for i := range shards {
				if !bytes.Equal(shards[i], damaged[i]) {
					t.Errorf("goroutine %d: shard %d differs", g, i)
				}
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkEncode(b *testing.B) {
	for _, size := range []int{4 << 10, 1 << 20} {
		b.Run(fmt.Sprintf("4+2/%d", size), func(b *testing.B) {
			s, err := New(4, 2)
			require.NoError(b, err)
			shards := randomShards(rand.New(rand.NewSource(1)), 4, 2, size)
			b.SetBytes(int64(4 * size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := s.Encode(shards); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkReconstruct(b *testing.B) {
	s, err := New(10, 4)
	require.NoError(b, err)
	shards := encodedShards(b, s, 1, 64<<10)
	b.SetBytes(int64(10 * 64 << 10))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		shards[1] = shards[1][:0]
		shards[12] = shards[12][:0]
		if err := s.Reconstruct(shards); err != nil {
			b.Fatal(err)
		}
	}
}
