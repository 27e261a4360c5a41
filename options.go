package dbs

import (
	"log/slog"
	"runtime"
)

const (
	// defaultProbeFraction is the share of the table's buckets one insertion
	// may visit before the table is declared full.
	defaultProbeFraction = 1.0 / 64
	// minProbeRounds is the lower bound on probe rounds, so that small tables
	// are probed across all of their lines.
	minProbeRounds = 8
	// defaultMaxSpins bounds the wait for a claimed bucket to be published.
	defaultMaxSpins = 1 << 20
	// maxLogSize bounds the table to 2^40 buckets.
	maxLogSize = 40
)

// Config holds the construction parameters of a Table. It is populated by
// the With* options passed to New.
type Config struct {
	hasher        Hasher
	hashWidth     HashWidth
	seed          uint64
	satBits       int
	workers       int
	probeFraction float64
	maxSpins      int
	logger        *slog.Logger
	onFull        func(*Table)
}

func defaultConfig() Config {
	return Config{
		hasher:        XXH3Hash,
		hashWidth:     Hash64,
		workers:       runtime.GOMAXPROCS(0),
		probeFraction: defaultProbeFraction,
		maxSpins:      defaultMaxSpins,
		logger:        discardLogger,
	}
}

// WithHasher configures the hash function and the number of meaningful bits
// it produces. A nil hasher keeps the default XXH3Hash.
func WithHasher(h Hasher, width HashWidth) func(*Config) {
	return func(c *Config) {
		if h != nil {
			c.hasher = h
		}
		c.hashWidth = width
	}
}

// WithSeed configures the seed passed to the hasher.
func WithSeed(seed uint64) func(*Config) {
	return func(c *Config) {
		c.seed = seed
	}
}

// WithSatelliteBits configures the width of the per-bucket satellite field,
// between 0 and 31 bits.
func WithSatelliteBits(n int) func(*Config) {
	return func(c *Config) {
		c.satBits = n
	}
}

// WithWorkers configures the number of worker statistics blocks, that is the
// range of ids accepted by Table.Worker. The default is GOMAXPROCS.
func WithWorkers(n int) func(*Config) {
	return func(c *Config) {
		c.workers = n
	}
}

// WithProbeFraction configures the share of buckets, in (0, 1], that an
// insertion may visit before the table is declared full.
func WithProbeFraction(f float64) func(*Config) {
	return func(c *Config) {
		c.probeFraction = f
	}
}

// WithMaxSpins bounds the number of polls a lookup spends waiting for a
// concurrently claimed bucket to be published.
func WithMaxSpins(n int) func(*Config) {
	return func(c *Config) {
		c.maxSpins = n
	}
}

// WithLogger configures the logger. The table logs at Debug on creation and
// at Error, once, when it becomes full.
func WithLogger(l *slog.Logger) func(*Config) {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnFull registers a hook invoked exactly once, by the worker that
// first exhausts the probe budget. Terminating the exploration is up to the
// hook.
func WithOnFull(fn func(*Table)) func(*Config) {
	return func(c *Config) {
		c.onFull = fn
	}
}

func (c *Config) validate(vectorLen, logSize int) error {
	switch {
	case vectorLen < 1:
		return &ConfigError{Field: "vector length", Value: vectorLen, Reason: "must be at least 1"}
	case logSize < 1 || logSize > maxLogSize:
		return &ConfigError{Field: "log size", Value: logSize, Reason: "must be in [1, 40]"}
	case c.hashWidth != Hash32 && c.hashWidth != Hash64:
		return &ConfigError{Field: "hash width", Value: int(c.hashWidth), Reason: "must be 32 or 64"}
	case c.hashWidth == Hash32 && logSize > 32:
		return &ConfigError{Field: "log size", Value: logSize, Reason: "exceeds a 32-bit hash"}
	case c.satBits < 0 || c.satBits > maxSatelliteBits:
		return &ConfigError{Field: "satellite bits", Value: c.satBits, Reason: "must be in [0, 31]"}
	case c.workers < 1:
		return &ConfigError{Field: "workers", Value: c.workers, Reason: "must be at least 1"}
	case !(c.probeFraction > 0 && c.probeFraction <= 1):
		return &ConfigError{Field: "probe fraction", Value: c.probeFraction, Reason: "must be in (0, 1]"}
	case c.maxSpins < 1:
		return &ConfigError{Field: "max spins", Value: c.maxSpins, Reason: "must be at least 1"}
	}
	return nil
}
