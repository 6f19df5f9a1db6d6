package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"strings"
	"time"

	"github.com/meigma/blastdb"
	"github.com/meigma/blastdb/cache/disk"
	"github.com/meigma/blastdb/testutil"
)

const cacheNone = "none"

type config struct {
	mode            string
	lookup          string
	split           string
	workers         int
	records         int
	seqLen          int
	aliases         int
	dataURL         string
	dataHTTPLatency time.Duration
	dataHTTPBPS     int64
	fgProfile       string
	duration        time.Duration
	iterations      int
	pprofAddr       string
	cpuProfile      string
	memProfile      string
	traceFile       string
	cache           string
	cacheDir        string
	readRandom      bool
	tempDir         string
	keepTemp        bool
	verbose         bool
	randomSeed      int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkOrdinal int
	sinkRecord  blastdb.Record
	sinkIDs     []string
	sinkCount   int
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	d := makeDatabase(cfg.records, cfg.seqLen, cfg.aliases, cfg.randomSeed)
	files, err := d.Encode()
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	srcs, cleanupSources, err := newSources(cfg, files)
	if err != nil {
		log.Fatal(err)
	}
	if cleanupSources != nil {
		defer cleanupSources()
	}

	opts, cleanupCache, err := dbOptions(cfg, dir)
	if err != nil {
		log.Fatal(err)
	}
	if cleanupCache != nil {
		defer cleanupCache() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	stopProfiles, err := startProfiles(cfg)
	if err != nil {
		log.Fatal(err)
	}

	stats, err := runProfile(cfg, srcs, opts, queryIDs(cfg.records))
	if err != nil {
		log.Fatal(err)
	}

	if err := stopProfiles(); err != nil {
		log.Printf("stop profiles: %v", err)
	}

	fmt.Printf("mode=%s lookup=%s records=%d ops=%d residues=%d elapsed=%s ops/s=%.1f\n",
		cfg.mode,
		cfg.lookup,
		cfg.records,
		stats.ops,
		stats.residues,
		stats.elapsed,
		float64(stats.ops)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops      int
	residues int64
	elapsed  time.Duration
}

// sources holds the three streams of the generated database.
type sources struct {
	index, headers, sequences blastdb.ByteSource
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, srcs sources, opts []blastdb.Option, ids []string) (profileStats, error) {
	open := func() (*blastdb.DB, error) {
		return blastdb.New(srcs.index, srcs.headers, srcs.sequences, opts...)
	}

	var db *blastdb.DB
	if cfg.mode != "open" {
		var err error
		if db, err = open(); err != nil {
			return profileStats{}, err
		}
	}

	start := time.Now()
	ops := 0
	var residues int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks

	switch cfg.mode {
	case "open":
		for shouldContinue() {
			opened, err := open()
			if err != nil {
				return profileStats{}, err
			}
			sinkCount = opened.Len()
			ops++
		}

	case "locate":
		for shouldContinue() {
			id := pickID(ids, ops, rng, cfg.readRandom)
			ord, err := db.Locate(id)
			if err != nil {
				return profileStats{}, err
			}
			sinkOrdinal = ord
			ops++
		}

	case "get":
		for shouldContinue() {
			id := pickID(ids, ops, rng, cfg.readRandom)
			rec, err := db.Get(id)
			if err != nil {
				return profileStats{}, err
			}
			sinkRecord = rec
			residues += int64(len(rec.Residues))
			ops++
		}

	case "synonyms":
		for shouldContinue() {
			id := pickID(ids, ops, rng, cfg.readRandom)
			syn, err := db.Synonyms(id)
			if err != nil {
				return profileStats{}, err
			}
			sinkIDs = syn
			ops++
		}

	case "iterate":
		for shouldContinue() {
			count := 0
			for rec, err := range db.Records() {
				if err != nil {
					return profileStats{}, err
				}
				sinkRecord = rec
				residues += int64(len(rec.Residues))
				count++
			}
			if count != db.Len() {
				return profileStats{}, fmt.Errorf("iterated %d of %d records", count, db.Len())
			}
			sinkCount = count
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:      ops,
		residues: residues,
		elapsed:  time.Since(start),
	}, nil
}

func parseFlags() config {
	var cfg config
	var dataHTTPBPS string
	flag.StringVar(&cfg.mode, "mode", "get", "mode: open, locate, get, synonyms, iterate")
	flag.StringVar(&cfg.lookup, "lookup", "scan", "lookup: scan or eager")
	flag.StringVar(&cfg.split, "split", "none", "identifier split mode: none or space")
	flag.IntVar(&cfg.workers, "workers", 0, "eager index workers (0 = GOMAXPROCS)")
	flag.IntVar(&cfg.records, "records", 20000, "number of records")
	flag.IntVar(&cfg.seqLen, "seq-len", 350, "residues per record")
	flag.IntVar(&cfg.aliases, "aliases", 2, "extra identifiers per record")
	flag.StringVar(&cfg.dataURL, "data-url", "", "HTTP database URL stem (use \"local\" to serve generated data)")
	flag.DurationVar(&cfg.dataHTTPLatency, "data-http-latency", 0, "per-request latency for HTTP sources")
	flag.StringVar(&dataHTTPBPS, "data-http-bps", "", "bytes/sec throttle for HTTP sources (e.g. 10MBps)")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.cache, "cache", cacheNone, "block cache: disk or none")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "", "cache directory (disk cache only)")
	flag.BoolVar(&cfg.readRandom, "read-random", true, "randomize identifier selection")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory for cache files")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.BoolVar(&cfg.verbose, "v", false, "log database operations at debug level")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()
	if cfg.records <= 0 {
		log.Fatalf("records must be positive, got %d", cfg.records)
	}
	if dataHTTPBPS != "" {
		bps, err := parseBytesPerSecond(dataHTTPBPS)
		if err != nil {
			log.Fatalf("data-http-bps: %v", err)
		}
		cfg.dataHTTPBPS = bps
	}
	return cfg
}

func pickID(ids []string, idx int, rng *rand.Rand, random bool) string {
	if random {
		return ids[rng.Intn(len(ids))]
	}
	return ids[idx%len(ids)]
}

// primaryID is the first identifier of record i in the generated database.
func primaryID(i int) string {
	return fmt.Sprintf("lcl|prot%07d", i)
}

// queryIDs returns the primary identifiers the lookup modes draw from.
func queryIDs(records int) []string {
	ids := make([]string, records)
	for i := range ids {
		ids[i] = primaryID(i)
	}
	return ids
}

// standardResidues are the twenty common amino acids.
const standardResidues = "ACDEFGHIKLMNPQRSTVWY"

// makeDatabase generates records with a primary identifier, aliases sharing
// one space-separated field and an ordinal marker.
func makeDatabase(records, seqLen, aliases int, seed int64) testutil.Database {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	d := testutil.Database{
		Title:     fmt.Sprintf("profiler %d records", records),
		Timestamp: "Jan 1, 2026  12:00 AM",
		Records:   make([]testutil.Record, records),
	}
	residues := make([]byte, seqLen)
	for i := range records {
		var names []string
		for a := range aliases {
			names = append(names, fmt.Sprintf("sp|P%05d-%d|ALIAS_%d", i, a, a))
		}
		fields := []string{primaryID(i)}
		if len(names) > 0 {
			fields = append(fields, strings.Join(names, " "))
		}
		fields = append(fields, fmt.Sprintf("%s:%d", blastdb.OrdinalMarker, i))

		for j := range residues {
			residues[j] = standardResidues[rng.Intn(len(standardResidues))]
		}
		d.Records[i] = testutil.Record{
			Header:   testutil.HeaderBlob(fields...),
			Residues: string(residues),
		}
	}
	return d
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func dbOptions(cfg config, rootDir string) ([]blastdb.Option, func() error, error) {
	mode, err := blastdb.ParseLookupMode(cfg.lookup)
	if err != nil {
		return nil, nil, err
	}
	split, err := blastdb.ParseSplitMode(cfg.split)
	if err != nil {
		return nil, nil, err
	}
	opts := []blastdb.Option{
		blastdb.WithLookupMode(mode),
		blastdb.WithSplitMode(split),
		blastdb.WithIndexWorkers(cfg.workers),
	}
	if cfg.verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, blastdb.WithLogger(logger))
	}

	switch cfg.cache {
	case cacheNone:
		return opts, nil, nil
	case "disk":
		cacheDir := cfg.cacheDir
		autoDir := false
		if cacheDir == "" {
			dir, err := os.MkdirTemp(rootDir, "cache-*")
			if err != nil {
				return nil, nil, err
			}
			cacheDir = dir
			autoDir = true
		}
		c, err := disk.NewBlockCache(cacheDir)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() error {
			stats := c.Stats()
			log.Printf("cache hits=%d misses=%d bypassed=%d size=%d", stats.Hits, stats.Misses, stats.Bypassed, stats.SizeBytes)
			if autoDir {
				return os.RemoveAll(cacheDir)
			}
			return nil
		}
		return append(opts, blastdb.WithBlockCache(c)), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache: %s", cfg.cache)
	}
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newSources(cfg config, files testutil.Files) (sources, func(), error) {
	if cfg.dataURL == "" {
		return sources{
			index:     testutil.NewMockByteSource(files.Index),
			headers:   testutil.NewMockByteSource(files.Headers),
			sequences: testutil.NewMockByteSource(files.Sequences),
		}, nil, nil
	}
	return newHTTPSources(cfg, files)
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "blastdb-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}
