package rs

import (
	"runtime"

	"github.com/ppopth/erasure/ec/encode"
	"github.com/ppopth/erasure/ec/field"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
)

var log = logging.Logger("rs")

// Config contains configuration for a Reed-Solomon session
type Config struct {
	// Cache for inverted decoding matrices. Nil means a private TreeCache,
	// unless DisableInversionCache is set.
	InversionCache InversionCache
	// Recompute the decoding matrix on every reconstruction.
	DisableInversionCache bool
	// Upper bound on the goroutines coding byte ranges of one call.
	MaxGoroutines int
	// Smallest byte range handed to one goroutine. Shards shorter than twice
	// this are coded on the calling goroutine.
	MinSplitSize int
	// Check at construction that any k rows of the generator are independent.
	CheckGenerator bool
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxGoroutines:  runtime.GOMAXPROCS(0),
		MinSplitSize:   64 << 10,
		CheckGenerator: true,
	}
}

// Option configures a Session during construction
type Option func(*Config) error

// WithInversionCache sets the cache used for decoding matrices. A cache may be
// shared between sessions; keys include the session shape.
func WithInversionCache(cache InversionCache) Option {
	return func(c *Config) error {
		if cache == nil {
			return errors.Wrap(encode.ErrConfiguration, "nil inversion cache")
		}
		c.InversionCache = cache
		c.DisableInversionCache = false
		return nil
	}
}

// WithoutInversionCache disables caching of decoding matrices
func WithoutInversionCache() Option {
	return func(c *Config) error {
		c.InversionCache = nil
		c.DisableInversionCache = true
		return nil
	}
}

// WithMaxGoroutines bounds the goroutines used per call
func WithMaxGoroutines(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.Wrapf(encode.ErrConfiguration, "max goroutines %d", n)
		}
		c.MaxGoroutines = n
		return nil
	}
}

// WithMinSplitSize sets the smallest byte range coded by one goroutine
func WithMinSplitSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.Wrapf(encode.ErrConfiguration, "min split size %d", n)
		}
		c.MinSplitSize = n
		return nil
	}
}

// WithoutGeneratorCheck skips the construction-time independence check
func WithoutGeneratorCheck() Option {
	return func(c *Config) error {
		c.CheckGenerator = false
		return nil
	}
}

// Session is a Reed-Solomon code with k data and m parity shards over GF(2^8).
// It is immutable after New returns and safe for concurrent use; each call
// only touches the shard buffers passed to it.
type Session struct {
	config Config

	dataShards   int
	parityShards int

	generator field.Matrix // (k+m)×k, identity on top
	parity    field.Matrix // generator[k:]
	cache     InversionCache
}

var _ encode.Codec = (*Session)(nil)

// New creates a session with k data shards and m parity shards.
// It fails with ErrConfiguration when k < 1, m < 0 or k+m > 256.
func New(k, m int, opts ...Option) (*Session, error) {
	if k < 1 || m < 0 {
		return nil, errors.Wrapf(encode.ErrConfiguration, "data shards %d, parity shards %d", k, m)
	}
	if k+m > field.Order {
		return nil, errors.Wrapf(encode.ErrConfiguration, "%d+%d shards exceed the field size %d", k, m, field.Order)
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	generator, err := buildGenerator(k, m)
	if err != nil {
		return nil, err
	}
	if config.CheckGenerator {
		if err := checkGenerator(generator, k); err != nil {
			return nil, err
		}
	}

	s := &Session{
		config:       *config,
		dataShards:   k,
		parityShards: m,
		generator:    generator,
		parity:       generator[k:],
		cache:        config.InversionCache,
	}
	if s.cache == nil && !config.DisableInversionCache {
		s.cache = NewTreeCache()
	}

	log.Debugf("new session data=%d parity=%d goroutines=%d split=%d", k, m, config.MaxGoroutines, config.MinSplitSize)
	return s, nil
}

// DataShards returns the number of data shards
func (s *Session) DataShards() int { return s.dataShards }

// ParityShards returns the number of parity shards
func (s *Session) ParityShards() int { return s.parityShards }

// TotalShards returns the number of data plus parity shards
func (s *Session) TotalShards() int { return s.dataShards + s.parityShards }

// GeneratorMatrix returns a copy of the (k+m)×k generator matrix
func (s *Session) GeneratorMatrix() field.Matrix {
	return s.generator.Clone()
}
