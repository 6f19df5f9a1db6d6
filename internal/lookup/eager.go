package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/blastdb/internal/visible"
)

// Eager holds an identifier map built once from every header.
// It is immutable after NewEager returns and safe for concurrent use.
type Eager struct {
	ids map[string]int
}

// EagerOption configures NewEager.
type EagerOption func(*eagerConfig)

type eagerConfig struct {
	workers int
	chunk   int
	logger  *slog.Logger
}

// WithWorkers sets how many goroutines decode headers.
// Values < 1 use GOMAXPROCS.
func WithWorkers(n int) EagerOption {
	return func(c *eagerConfig) {
		c.workers = n
	}
}

// WithChunkSize sets how many headers each worker reads at a time.
func WithChunkSize(n int) EagerOption {
	return func(c *eagerConfig) {
		if n > 0 {
			c.chunk = n
		}
	}
}

// WithLogger sets the logger for build diagnostics.
func WithLogger(logger *slog.Logger) EagerOption {
	return func(c *eagerConfig) {
		c.logger = logger
	}
}

// NewEager decodes every header with t and maps each identifier to its
// ordinal. When an identifier occurs in more than one record the lowest
// ordinal is kept. Any read or decode failure aborts the build.
func NewEager(ctx context.Context, headers Headers, t visible.Transform, opts ...EagerOption) (*Eager, error) {
	cfg := eagerConfig{chunk: defaultChunk}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	start := time.Now()
	n := headers.Len()
	chunks := (n + cfg.chunk - 1) / cfg.chunk
	partial := make([]map[string]int, chunks)
	chunkDups := make([]int, chunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for c := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo := c * cfg.chunk
			hi := min(lo+cfg.chunk, n)
			m, dups, err := buildChunk(headers, t, lo, hi)
			if err != nil {
				return err
			}
			partial[c] = m
			chunkDups[c] = dups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[string]int, n)
	duplicates := 0
	for _, d := range chunkDups {
		duplicates += d
	}
	for _, m := range partial {
		for id, ord := range m {
			if _, ok := ids[id]; ok {
				duplicates++
				continue
			}
			ids[id] = ord
		}
	}

	logger.Debug("identifier map built",
		slog.Int("records", n),
		slog.Int("identifiers", len(ids)),
		slog.Int("duplicates", duplicates),
		slog.Int("workers", cfg.workers),
		slog.Duration("elapsed", time.Since(start)))

	return &Eager{ids: ids}, nil
}

// buildChunk maps identifiers of records [lo, hi), keeping the first ordinal
// for identifiers repeated within the chunk. It also returns how many
// repeats it skipped.
func buildChunk(headers Headers, t visible.Transform, lo, hi int) (map[string]int, int, error) {
	blobs, err := headers.HeaderRange(lo, hi)
	if err != nil {
		return nil, 0, fmt.Errorf("read headers [%d, %d): %w", lo, hi, err)
	}
	m := make(map[string]int, len(blobs))
	dups := 0
	for j, blob := range blobs {
		ids, err := visible.Identifiers(blob, t)
		if err != nil {
			return nil, 0, fmt.Errorf("decode header %d: %w", lo+j, err)
		}
		for _, id := range ids {
			if _, ok := m[id]; ok {
				dups++
				continue
			}
			m[id] = lo + j
		}
	}
	return m, dups, nil
}

// Locate implements Strategy.
func (e *Eager) Locate(id string) (int, error) {
	ord, ok := e.ids[id]
	if !ok {
		return 0, notFound(id)
	}
	return ord, nil
}

// Len returns the number of distinct identifiers.
func (e *Eager) Len() int {
	return len(e.ids)
}
