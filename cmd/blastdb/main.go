// Command blastdb inspects and exports compiled protein sequence databases.
//
// Usage:
//
//	blastdb [flags] info
//	blastdb [flags] get [-width n] id...
//	blastdb [flags] synonyms id
//	blastdb [flags] dump [-o file] [-width n] [-compress none|zstd]
//
// The database is given with -db (local path stem) or -url (URL stem of a
// database served over HTTP). Flags override values from the -config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/meigma/blastdb/internal/config"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globalFlags are the flags accepted before the command name.
type globalFlags struct {
	configPath string
	db         string
	url        string
	eager      bool
	split      string
	workers    int
	cacheDir   string
	logLevel   string
}

func newGlobalFlagSet(stderr io.Writer, g *globalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("blastdb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "YAML config file")
	fs.StringVar(&g.db, "db", "", "database path stem (stem.pin, stem.phr, stem.psq)")
	fs.StringVar(&g.url, "url", "", "database URL stem served with range requests")
	fs.BoolVar(&g.eager, "eager", false, "build the identifier map at open instead of scanning headers")
	fs.StringVar(&g.split, "split", "", "identifier split mode: none or space")
	fs.IntVar(&g.workers, "workers", 0, "eager index workers (0 = GOMAXPROCS)")
	fs.StringVar(&g.cacheDir, "cache-dir", "", "disk block cache directory for -url databases")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: blastdb [flags] <info|get|synonyms|dump> [args]")
		fs.PrintDefaults()
	}
	return fs
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globalFlags
	fs := newGlobalFlagSet(stderr, &g)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(fs, g)
	if err != nil {
		fmt.Fprintf(stderr, "blastdb: %v\n", err)
		return exitUsage
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "blastdb: %v\n", err)
		return exitUsage
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	c, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "blastdb: unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
	return c(&env{ctx: ctx, cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}, cmdArgs)
}

// loadConfig reads the config file and applies flags that were set.
func loadConfig(fs *flag.FlagSet, g globalFlags) (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.LoadFile(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DB, cfg.URL = g.db, ""
		case "url":
			cfg.URL, cfg.DB = g.url, ""
		case "eager":
			if g.eager {
				cfg.Lookup = "eager"
			} else {
				cfg.Lookup = "scan"
			}
		case "split":
			cfg.Split = g.split
		case "workers":
			cfg.Workers = g.workers
		case "cache-dir":
			cfg.Cache.Dir = g.cacheDir
		case "log-level":
			cfg.Logging.Level = g.logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DB == "" && cfg.URL == "" {
		return nil, errors.New("no database: set -db, -url or db/url in the config file")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
