package blastdb

import (
	"log/slog"

	"github.com/meigma/blastdb/cache"
	"github.com/meigma/blastdb/internal/lookup"
)

// Option configures a DB.
type Option func(*DB)

// WithEagerIndex builds the identifier map at open time when enabled.
// Lookups then match whole identifiers instead of header substrings.
func WithEagerIndex(enabled bool) Option {
	return func(db *DB) {
		if enabled {
			db.mode = lookup.ModeEager
		} else {
			db.mode = lookup.ModeScan
		}
	}
}

// WithLookupMode selects the lookup strategy directly.
func WithLookupMode(mode LookupMode) Option {
	return func(db *DB) {
		db.mode = mode
	}
}

// WithSplitMode controls whether header fields are split on spaces into
// separate identifiers. The default keeps each field whole.
func WithSplitMode(mode SplitMode) Option {
	return func(db *DB) {
		db.split = mode
	}
}

// WithIndexWorkers sets how many goroutines build the eager identifier map.
// Values < 1 use GOMAXPROCS.
func WithIndexWorkers(n int) Option {
	return func(db *DB) {
		db.workers = n
	}
}

// WithBlockCache reads headers and sequences through c.
// The index stream is read once at open and is never cached.
func WithBlockCache(c cache.BlockCache, opts ...cache.WrapOption) Option {
	return func(db *DB) {
		db.blockCache = c
		db.wrapOpts = opts
	}
}

// WithLogger sets the logger for database operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}
