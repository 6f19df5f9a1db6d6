package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/blastdb"
	"github.com/meigma/blastdb/internal/config"
)

// env carries what every command needs.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

type command func(e *env, args []string) int

var commands = map[string]command{
	"info":     cmdInfo,
	"get":      cmdGet,
	"synonyms": cmdSynonyms,
	"dump":     cmdDump,
}

func (e *env) fail(err error) int {
	fmt.Fprintf(e.stderr, "blastdb: %v\n", err)
	return exitError
}

// withDB opens the configured database, runs fn and closes it.
func (e *env) withDB(fn func(db *blastdb.DB) int) int {
	start := time.Now()
	db, closeFn, err := openDB(e.ctx, e.cfg, e.logger)
	if err != nil {
		return e.fail(err)
	}
	e.logger.Info("database opened",
		slog.String("title", db.Title()),
		slog.Int("records", db.Len()),
		slog.String("lookup", db.LookupMode().String()),
		slog.Duration("elapsed", time.Since(start)))

	return e.closeDB(fn(db), closeFn)
}

// closeDB runs closeFn after a command finished with code. A close failure
// is always reported, and turns a successful run into an error.
func (e *env) closeDB(code int, closeFn func() error) int {
	if err := closeFn(); err != nil {
		fmt.Fprintf(e.stderr, "blastdb: close database: %v\n", err)
		return exitError
	}
	return code
}

func newCommandFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("blastdb "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func cmdInfo(e *env, args []string) int {
	fs := newCommandFlagSet(e, "info")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	return e.withDB(func(db *blastdb.DB) int {
		info := db.Info()
		d, err := db.IndexDigest()
		if err != nil {
			return e.fail(err)
		}
		w := e.stdout
		fmt.Fprintf(w, "title:      %s\n", info.Title)
		fmt.Fprintf(w, "version:    %d\n", info.Version)
		fmt.Fprintf(w, "protein:    %t\n", info.Protein)
		fmt.Fprintf(w, "records:    %d\n", info.Records)
		fmt.Fprintf(w, "index:      %d bytes\n", info.IndexBytes)
		fmt.Fprintf(w, "headers:    %d bytes\n", info.HeaderBytes)
		fmt.Fprintf(w, "sequences:  %d bytes\n", info.SequenceBytes)
		fmt.Fprintf(w, "lookup:     %s\n", info.LookupMode)
		fmt.Fprintf(w, "split:      %s\n", info.SplitMode)
		fmt.Fprintf(w, "digest:     %s\n", d)
		return exitOK
	})
}

// cmdGet prints the FASTA entry of each identifier. Missing identifiers are
// reported and the remaining ones are still printed.
func cmdGet(e *env, args []string) int {
	fs := newCommandFlagSet(e, "get")
	width := fs.Int("width", e.cfg.FASTA.Width, "residues per line (0 = one line)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(e.stderr, "usage: blastdb get [-width n] id...")
		return exitUsage
	}
	return e.withDB(func(db *blastdb.DB) int {
		code := exitOK
		for _, id := range fs.Args() {
			rec, err := db.Get(id)
			if err != nil {
				if !errors.Is(err, blastdb.ErrNotFound) {
					return e.fail(err)
				}
				fmt.Fprintf(e.stderr, "blastdb: %v\n", err)
				code = exitError
				continue
			}
			if err := blastdb.WriteFASTA(e.stdout, rec, *width); err != nil {
				return e.fail(err)
			}
		}
		return code
	})
}

func cmdSynonyms(e *env, args []string) int {
	fs := newCommandFlagSet(e, "synonyms")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.stderr, "usage: blastdb synonyms id")
		return exitUsage
	}
	return e.withDB(func(db *blastdb.DB) int {
		ids, err := db.Synonyms(fs.Arg(0))
		if err != nil {
			return e.fail(err)
		}
		fmt.Fprintln(e.stdout, strings.Join(ids, "\n"))
		return exitOK
	})
}

func cmdDump(e *env, args []string) int {
	fs := newCommandFlagSet(e, "dump")
	out := fs.String("o", "", "output file (default stdout)")
	width := fs.Int("width", e.cfg.FASTA.Width, "residues per line (0 = one line)")
	compression := fs.String("compress", e.cfg.FASTA.Compression, "output compression: none or zstd")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	switch strings.ToLower(*compression) {
	case "", "none", "zstd":
	default:
		fmt.Fprintf(e.stderr, "blastdb: unknown compression %q\n", *compression)
		return exitUsage
	}

	return e.withDB(func(db *blastdb.DB) int {
		n, err := dump(db, e.stdout, *out, *width, strings.EqualFold(*compression, "zstd"))
		if err != nil {
			return e.fail(err)
		}
		e.logger.Info("dump complete", slog.Int("records", n), slog.String("output", *out))
		return exitOK
	})
}

func dump(db *blastdb.DB, stdout io.Writer, path string, width int, compress bool) (n int, err error) {
	w := stdout
	if path != "" {
		f, err := os.Create(path) //nolint:gosec // user-chosen output path
		if err != nil {
			return 0, fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}
	if !compress {
		return db.WriteFASTA(w, width)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("create zstd encoder: %w", err)
	}
	n, err = db.WriteFASTA(enc, width)
	if cerr := enc.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close zstd encoder: %w", cerr)
	}
	return n, err
}
