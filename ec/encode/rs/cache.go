package rs

import (
	"sync"
	"sync/atomic"

	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/field"

	"github.com/dgraph-io/ristretto"
	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/pkg/errors"
)

// InversionCache stores inverted decoding matrices keyed by the loss pattern.
// Matrices handed to Set are never modified afterwards, and callers must not
// modify matrices returned by Get. Implementations must be safe for
// concurrent use. A cache only affects speed, never results.
type InversionCache interface {
	Get(key []byte) (field.Matrix, bool)
	Set(key []byte, m field.Matrix)
}

// cacheKey identifies a loss pattern: the session shape followed by the sorted
// missing indices, one byte each (k+m <= 256).
func (s *Session) cacheKey(missing []int) []byte {
	key := make([]byte, 0, 2+len(missing))
	key = append(key, byte(s.dataShards-1), byte(s.parityShards))
	for _, idx := range missing {
		key = append(key, byte(idx))
	}
	return key
}

// TreeCache is an unbounded cache backed by an immutable radix tree. Reads
// are lock-free; writers serialise and swap the root.
type TreeCache struct {
	mu   sync.Mutex
	root atomic.Pointer[iradix.Tree]
}

var _ InversionCache = (*TreeCache)(nil)

// NewTreeCache returns an empty TreeCache.
func NewTreeCache() *TreeCache {
	c := &TreeCache{}
	c.root.Store(iradix.New())
	return c
}

// Get returns the matrix stored under key.
func (c *TreeCache) Get(key []byte) (field.Matrix, bool) {
	v, ok := c.root.Load().Get(key)
	if !ok {
		return nil, false
	}
	return v.(field.Matrix), true
}

// Set stores m under key, replacing any previous entry.
func (c *TreeCache) Set(key []byte, m field.Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tree, _, _ := c.root.Load().Insert(key, m)
	c.root.Store(tree)
}

// Len returns the number of cached matrices.
func (c *TreeCache) Len() int {
	return c.root.Load().Len()
}

// BoundedCache is a size-bounded TinyLFU cache. Admission is asynchronous, so
// a Set may not be visible to an immediate Get or may be dropped altogether.
type BoundedCache struct {
	cache *ristretto.Cache
}

var _ InversionCache = (*BoundedCache)(nil)

// NewBoundedCache returns a cache holding at most about maxBytes of matrix
// entries.
func NewBoundedCache(maxBytes int64) (*BoundedCache, error) {
	if maxBytes < 1 {
		return nil, errors.Wrapf(encode.ErrConfiguration, "cache size %d", maxBytes)
	}

	// Ten counters per expected entry; a 16×16 matrix is 256 bytes.
	counters := maxBytes / 256 * 10
	if counters < 1000 {
		counters = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bounded inversion cache")
	}
	return &BoundedCache{cache: cache}, nil
}

// Get returns the matrix stored under key.
func (c *BoundedCache) Get(key []byte) (field.Matrix, bool) {
	v, ok := c.cache.Get(string(key))
	if !ok {
		return nil, false
	}
	return v.(field.Matrix), true
}

// Set offers m to the cache at a cost of its size in bytes.
func (c *BoundedCache) Set(key []byte, m field.Matrix) {
	c.cache.Set(string(key), m, int64(m.Rows()*m.Cols()))
}

// Close stops the cache's background goroutines.
func (c *BoundedCache) Close() {
	c.cache.Close()
}
