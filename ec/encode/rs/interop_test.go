package rs

import (
	"fmt"
	"testing"

	"github.com/klauspost/reedsolomon"
	"github.com/stretchr/testify/require"
)

// Parity must be byte-identical to the default Vandermonde code of
// klauspost/reedsolomon, and each side must reconstruct the other's shards.
func TestInteropReedSolomon(t *testing.T) {
	for _, tc := range []struct{ k, m int }{{2, 1}, {2, 2}, {4, 2}, {5, 3}, {10, 4}, {17, 3}} {
		t.Run(fmt.Sprintf("%d+%d", tc.k, tc.m), func(t *testing.T) {
			s, err := New(tc.k, tc.m)
			require.NoError(t, err)
			enc, err := reedsolomon.New(tc.k, tc.m)
			require.NoError(t, err)

			ours := encodedShards(t, s, int64(tc.k), 1000)
			theirs := cloneShards(ours)
			for i := tc.k; i < len(theirs); i++ {
				theirs[i] = make([]byte, 1000)
			}
			require.NoError(t, enc.Encode(theirs))
			require.Equal(t, theirs, ours)

			ok, err := enc.Verify(ours)
			require.NoError(t, err)
			require.True(t, ok)

			damaged := cloneShards(theirs)
			for i := 0; i < tc.m; i++ {
				damaged[i] = nil
			}
			require.NoError(t, s.Reconstruct(damaged))
			require.Equal(t, theirs, damaged)
		})
	}
}
