// Package disk provides a block cache that keeps blocks as files on local disk.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/blastdb/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	blockFileSuffix       = ".blk"
)

// BlockCache stores fixed-size blocks of wrapped sources as files under a
// directory. Concurrent reads of a missing block share one fetch.
// It is safe for concurrent use.
type BlockCache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64

	size     atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	bypassed atomic.Int64

	fetches singleflight.Group
	pruneMu sync.Mutex
}

// Option configures a BlockCache.
type Option func(*BlockCache)

// WithMaxBytes caps the bytes kept on disk. Values <= 0 disable the cap.
func WithMaxBytes(n int64) Option {
	return func(c *BlockCache) {
		c.maxBytes = max(n, 0)
	}
}

// WithShardPrefixLen sets how many hex characters of the block key name the
// subdirectory a block lives in. Zero stores all blocks in one directory.
func WithShardPrefixLen(n int) Option {
	return func(c *BlockCache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the permissions of created directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *BlockCache) {
		c.dirPerm = mode
	}
}

// NewBlockCache creates a block cache rooted at dir, creating it if needed.
// Blocks already present count toward the size cap.
func NewBlockCache(dir string, opts ...Option) (*BlockCache, error) {
	if dir == "" {
		return nil, errors.New("disk cache: dir is empty")
	}
	c := &BlockCache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, fmt.Errorf("disk cache: shard prefix length %d is negative", c.shardPrefixLen)
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, fmt.Errorf("disk cache: %w", err)
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, fmt.Errorf("disk cache: measure %s: %w", dir, err)
	}
	c.size.Store(size)
	return c, nil
}

// Wrap implements cache.BlockCache.
func (c *BlockCache) Wrap(src cache.ByteSource, opts ...cache.WrapOption) (cache.ByteSource, error) {
	if src == nil {
		return nil, errors.New("disk cache: source is nil")
	}
	cfg, err := cache.NewWrapConfig(opts...)
	if err != nil {
		return nil, err
	}
	id := src.SourceID()
	if id == "" {
		return nil, errors.New("disk cache: source id is empty")
	}
	return &blockSource{
		src:       src,
		cache:     c,
		id:        id,
		blockSize: cfg.BlockSize,
		maxBlocks: int64(cfg.MaxBlocksPerRead),
	}, nil
}

// Stats implements cache.BlockCache.
func (c *BlockCache) Stats() cache.Stats {
	return cache.Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Bypassed:  c.bypassed.Load(),
		SizeBytes: c.size.Load(),
		MaxBytes:  c.maxBytes,
	}
}

// Prune implements cache.BlockCache. The oldest blocks go first.
func (c *BlockCache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, max(targetBytes, 0))
	if err != nil {
		return freed, err
	}
	c.size.Store(remaining)
	return freed, nil
}

// blockKey names block i of a source split into blockSize blocks.
func blockKey(sourceID string, blockSize, i int64) digest.Digest {
	return digest.FromString(sourceID + "\x00" + strconv.FormatInt(blockSize, 10) + "\x00" + strconv.FormatInt(i, 10))
}

func (c *BlockCache) blockPath(key digest.Digest) string {
	name := key.Encoded()
	if c.shardPrefixLen == 0 {
		return filepath.Join(c.dir, name+blockFileSuffix)
	}
	shard := name[:min(c.shardPrefixLen, len(name))]
	return filepath.Join(c.dir, shard, name+blockFileSuffix)
}

// block returns the block stored under key, calling fetch on a miss.
// Blocks on disk with the wrong length are discarded and fetched again.
func (c *BlockCache) block(key digest.Digest, want int64, fetch func() ([]byte, error)) ([]byte, error) {
	v, err, _ := c.fetches.Do(key.String(), func() (any, error) {
		path := c.blockPath(key)
		data, err := os.ReadFile(path) //nolint:gosec // path is built from a digest
		switch {
		case err == nil && int64(len(data)) == want:
			c.hits.Add(1)
			return data, nil
		case err == nil:
			if os.Remove(path) == nil {
				c.size.Add(-int64(len(data)))
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}

		c.misses.Add(1)
		data, err = fetch()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != want {
			return nil, io.ErrUnexpectedEOF
		}
		_ = c.store(path, data) //nolint:errcheck // a failed store only costs a refetch
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:errcheck,forcetypeassert // Do returns what the closure returned
}

// store writes data to path through a temporary file, making room first
// when the cache is capped.
func (c *BlockCache) store(path string, data []byte) error {
	need := int64(len(data))
	if need == 0 {
		return nil
	}
	if c.maxBytes > 0 {
		if need > c.maxBytes {
			return nil
		}
		if c.size.Load()+need > c.maxBytes {
			if _, err := c.Prune(c.maxBytes - need); err != nil {
				return err
			}
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	c.size.Add(need)
	return nil
}

// blockSource serves ReadAt from cached blocks of src.
type blockSource struct {
	src       cache.ByteSource
	cache     *BlockCache
	id        string
	blockSize int64
	maxBlocks int64
}

func (s *blockSource) Size() int64      { return s.src.Size() }
func (s *blockSource) SourceID() string { return s.id }

func (s *blockSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), size-off)

	first := off / s.blockSize
	last := (off + want - 1) / s.blockSize
	if s.maxBlocks > 0 && last-first+1 > s.maxBlocks {
		s.cache.bypassed.Add(1)
		return s.src.ReadAt(p, off)
	}

	var n int64
	for i := first; i <= last; i++ {
		start := i * s.blockSize
		end := min(start+s.blockSize, size)
		data, err := s.cache.block(blockKey(s.id, s.blockSize, i), end-start, func() ([]byte, error) {
			return s.fetch(start, end-start)
		})
		if err != nil {
			return int(n), err
		}
		from := max(off, start)
		to := min(off+want, end)
		n += int64(copy(p[from-off:to-off], data[from-start:to-start]))
	}

	if want < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// fetch reads one block from the wrapped source, streaming it when the
// source supports range reads.
func (s *blockSource) fetch(off, length int64) ([]byte, error) {
	if rr, ok := s.src.(cache.RangeReader); ok {
		rc, err := rr.ReadRange(off, length)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	buf := make([]byte, length)
	n, err := s.src.ReadAt(buf, off)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, err
	}
	return buf[:n], nil
}

var _ cache.BlockCache = (*BlockCache)(nil)
