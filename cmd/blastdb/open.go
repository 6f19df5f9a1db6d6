package main

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/meigma/blastdb"
	"github.com/meigma/blastdb/cache"
	"github.com/meigma/blastdb/cache/disk"
	"github.com/meigma/blastdb/internal/config"
	dbhttp "github.com/meigma/blastdb/http"
)

const defaultHTTPTimeout = 30 * time.Second

// dbOptions translates the lookup settings of cfg into DB options.
func dbOptions(cfg *config.Config, logger *slog.Logger) ([]blastdb.Option, error) {
	mode, err := blastdb.ParseLookupMode(cfg.Lookup)
	if err != nil {
		return nil, err
	}
	split, err := blastdb.ParseSplitMode(cfg.Split)
	if err != nil {
		return nil, err
	}
	return []blastdb.Option{
		blastdb.WithLookupMode(mode),
		blastdb.WithSplitMode(split),
		blastdb.WithIndexWorkers(cfg.Workers),
		blastdb.WithLogger(logger),
	}, nil
}

// openDB opens the database named by cfg. The returned function releases it.
func openDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*blastdb.DB, func() error, error) {
	opts, err := dbOptions(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DB != "" {
		f, err := blastdb.Open(cfg.DB, opts...)
		if err != nil {
			return nil, nil, err
		}
		return f.DB, f.Close, nil
	}
	db, err := openRemote(ctx, cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}
	return db, func() error { return nil }, nil
}

func openRemote(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts []blastdb.Option) (*blastdb.DB, error) {
	client := &nethttp.Client{Timeout: cfg.HTTPTimeout(defaultHTTPTimeout, logger)}
	srcOpts := []dbhttp.Option{dbhttp.WithClient(client)}
	for k, v := range cfg.HTTP.Headers {
		srcOpts = append(srcOpts, dbhttp.WithHeader(k, v))
	}
	if cfg.HTTP.Pinned {
		srcOpts = append(srcOpts, dbhttp.WithPinnedContent())
	}

	stem := strings.TrimSuffix(cfg.URL, "/")
	indexURL, headersURL, sequencesURL := dbhttp.StemURLs(stem)
	var sources [3]*dbhttp.Source
	for i, u := range []string{indexURL, headersURL, sequencesURL} {
		src, err := dbhttp.NewSource(ctx, u, srcOpts...)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", u, err)
		}
		logger.Debug("remote stream opened", slog.String("url", u), slog.Int64("size", src.Size()))
		sources[i] = src
	}

	if cfg.Cache.Dir != "" {
		var diskOpts []disk.Option
		if cfg.Cache.MaxBytes > 0 {
			diskOpts = append(diskOpts, disk.WithMaxBytes(cfg.Cache.MaxBytes))
		}
		bc, err := disk.NewBlockCache(cfg.Cache.Dir, diskOpts...)
		if err != nil {
			return nil, fmt.Errorf("open block cache: %w", err)
		}
		var wrapOpts []cache.WrapOption
		if cfg.Cache.BlockSize > 0 {
			wrapOpts = append(wrapOpts, cache.WithBlockSize(cfg.Cache.BlockSize))
		}
		opts = append(opts, blastdb.WithBlockCache(bc, wrapOpts...))
	}

	return blastdb.New(sources[0], sources[1], sources[2], opts...)
}
