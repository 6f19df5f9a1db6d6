// Package cache defines block caching for database streams.
//
// Remote header and sequence streams are read in many small ranges. A
// BlockCache wraps such a stream and serves reads from fixed-size blocks
// kept by the cache implementation; see package disk for a file-backed one.
package cache

import (
	"errors"
	"fmt"
	"io"
)

// ByteSource is a random-access stream that can be cached.
type ByteSource interface {
	io.ReaderAt

	// Size returns the stream length in bytes.
	Size() int64

	// SourceID identifies the stream content. It is part of every block key,
	// so it must be stable across processes and differ between streams.
	SourceID() string
}

// RangeReader is implemented by sources that fetch a range more cheaply as a
// stream than through ReadAt, such as HTTP sources.
type RangeReader interface {
	ReadRange(off, length int64) (io.ReadCloser, error)
}

// BlockCache wraps ByteSources with block-level caching.
type BlockCache interface {
	// Wrap returns a ByteSource serving reads of src through the cache.
	Wrap(src ByteSource, opts ...WrapOption) (ByteSource, error)

	// Stats reports cache usage.
	Stats() Stats

	// Prune evicts blocks until the cache holds at most targetBytes and
	// returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

// Stats is a snapshot of cache usage.
type Stats struct {
	Hits      int64
	Misses    int64
	Bypassed  int64
	SizeBytes int64
	MaxBytes  int64
}

// DefaultBlockSize suits header blobs and typical protein sequences, which
// are a few hundred bytes each.
const DefaultBlockSize int64 = 32 << 10

// DefaultMaxBlocksPerRead sends reads spanning more blocks straight to the
// source. Eager identifier builds read headers in large ranges.
const DefaultMaxBlocksPerRead = 8

// ErrInvalidConfig is returned by Wrap for unusable wrap settings.
var ErrInvalidConfig = errors.New("cache: invalid wrap config")

// WrapConfig controls how a source is split into blocks.
type WrapConfig struct {
	// BlockSize is the size of each cached block in bytes.
	BlockSize int64

	// MaxBlocksPerRead bypasses the cache for reads spanning more blocks.
	// Zero disables the limit.
	MaxBlocksPerRead int
}

// DefaultWrapConfig returns the default wrap settings.
func DefaultWrapConfig() WrapConfig {
	return WrapConfig{
		BlockSize:        DefaultBlockSize,
		MaxBlocksPerRead: DefaultMaxBlocksPerRead,
	}
}

// NewWrapConfig applies opts to the defaults and validates the result.
func NewWrapConfig(opts ...WrapOption) (WrapConfig, error) {
	cfg := DefaultWrapConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BlockSize <= 0 {
		return cfg, fmt.Errorf("%w: block size %d", ErrInvalidConfig, cfg.BlockSize)
	}
	if cfg.MaxBlocksPerRead < 0 {
		return cfg, fmt.Errorf("%w: max blocks per read %d", ErrInvalidConfig, cfg.MaxBlocksPerRead)
	}
	return cfg, nil
}

// WrapOption configures Wrap.
type WrapOption func(*WrapConfig)

// WithBlockSize sets the block size in bytes.
func WithBlockSize(n int64) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.BlockSize = n
	}
}

// WithMaxBlocksPerRead sets the bypass threshold. Zero disables it.
func WithMaxBlocksPerRead(n int) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.MaxBlocksPerRead = n
	}
}
