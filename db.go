package blastdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/blastdb/cache"
	"github.com/meigma/blastdb/internal/index"
	"github.com/meigma/blastdb/internal/lookup"
	"github.com/meigma/blastdb/internal/residue"
	"github.com/meigma/blastdb/internal/sizing"
	"github.com/meigma/blastdb/internal/visible"
)

// Re-export types from internal packages for the public API.
type (
	// Span is a byte range within the header or sequence stream.
	Span = index.Span

	// SplitMode selects how header fields become identifiers.
	SplitMode = visible.SplitMode

	// LookupMode selects how identifiers are resolved.
	LookupMode = lookup.Mode
)

// Split and lookup modes.
const (
	SplitNone    = visible.SplitNone
	SplitOnSpace = visible.SplitOnSpace

	ModeScan  = lookup.ModeScan
	ModeEager = lookup.ModeEager
)

// OrdinalMarker is the builder-internal identifier excluded from every
// identifier list.
const OrdinalMarker = visible.OrdinalMarker

// ParseSplitMode parses "none" or "space".
var ParseSplitMode = visible.ParseSplitMode

// ParseLookupMode parses "scan" or "eager".
var ParseLookupMode = lookup.ParseMode

// ByteSource provides random access to one database stream.
//
// Implementations exist for local files and HTTP range requests.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// DB reads records from a database.
//
// The offset tables and the eager identifier map are built once by New and
// never change. Every read goes through io.ReaderAt, so a DB is safe for
// concurrent use.
type DB struct {
	idx       *index.Index
	index     ByteSource
	headers   ByteSource
	sequences ByteSource
	strategy  lookup.Strategy
	transform visible.Transform

	mode       lookup.Mode
	split      visible.SplitMode
	workers    int
	blockCache cache.BlockCache
	wrapOpts   []cache.WrapOption
	logger     *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (db *DB) log() *slog.Logger {
	if db.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return db.logger
}

// New opens a database from its three streams.
//
// The index is parsed immediately and its tables are checked against the
// sizes of the header and sequence streams. In eager mode every header is
// decoded before New returns, so a malformed header fails here rather than
// on first lookup.
func New(indexSrc, headers, sequences ByteSource, opts ...Option) (*DB, error) {
	if indexSrc == nil || headers == nil || sequences == nil {
		return nil, errors.New("blastdb: nil source")
	}
	db := &DB{
		index:     indexSrc,
		headers:   headers,
		sequences: sequences,
	}
	for _, opt := range opts {
		opt(db)
	}

	idx, err := index.Parse(indexSrc, indexSrc.Size())
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	db.idx = idx
	if err := db.checkBounds(); err != nil {
		return nil, err
	}

	if db.blockCache != nil {
		if db.headers, err = db.blockCache.Wrap(headers, db.wrapOpts...); err != nil {
			return nil, fmt.Errorf("cache headers: %w", err)
		}
		if db.sequences, err = db.blockCache.Wrap(sequences, db.wrapOpts...); err != nil {
			return nil, fmt.Errorf("cache sequences: %w", err)
		}
	}

	db.transform = visible.ForMode(db.split)
	switch db.mode {
	case lookup.ModeEager:
		eager, err := lookup.NewEager(context.Background(), headerTable{db}, db.transform,
			lookup.WithWorkers(db.workers),
			lookup.WithLogger(db.logger))
		if err != nil {
			return nil, fmt.Errorf("build identifier map: %w", err)
		}
		db.strategy = eager
	case lookup.ModeScan:
		db.strategy = lookup.NewScan(headerTable{db})
	default:
		return nil, fmt.Errorf("blastdb: unknown lookup mode %d", db.mode)
	}

	db.log().Debug("database opened",
		slog.String("title", idx.Title()),
		slog.Int("records", idx.Len()),
		slog.String("lookup", db.mode.String()),
		slog.String("split", db.split.String()))
	return db, nil
}

// checkBounds rejects tables that address bytes past the end of a stream.
// Spans are ordered, so only the last one needs checking.
func (db *DB) checkBounds() error {
	n := db.idx.Len()
	if n == 0 {
		return nil
	}
	h, _ := db.idx.Header(n - 1)
	if err := fits(h, db.headers, "header"); err != nil {
		return err
	}
	s, _ := db.idx.Sequence(n - 1)
	return fits(s, db.sequences, "sequence")
}

func fits(sp Span, src ByteSource, stream string) error {
	size := src.Size()
	if size < 0 || sp.End() > uint64(size) {
		return fmt.Errorf("%w: %s table ends at %d but the %s stream holds %d bytes",
			ErrMalformedIndex, stream, sp.End(), stream, size)
	}
	return nil
}

// Title returns the database title.
func (db *DB) Title() string {
	return db.idx.Title()
}

// Len returns the number of records.
func (db *DB) Len() int {
	return db.idx.Len()
}

// LookupMode returns the lookup strategy in use.
func (db *DB) LookupMode() LookupMode {
	return db.mode
}

// SplitMode returns the identifier split mode.
func (db *DB) SplitMode() SplitMode {
	return db.split
}

// HeaderSpan returns the header blob range of record i.
func (db *DB) HeaderSpan(i int) (Span, error) {
	sp, ok := db.idx.Header(i)
	if !ok {
		return Span{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, db.Len())
	}
	return sp, nil
}

// SequenceSpan returns the residue range of record i, excluding the terminator.
func (db *DB) SequenceSpan(i int) (Span, error) {
	sp, ok := db.idx.Sequence(i)
	if !ok {
		return Span{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, db.Len())
	}
	return sp, nil
}

// readSpan reads exactly sp from src.
func readSpan(src ByteSource, sp Span) ([]byte, error) {
	off, n, err := sizing.Range(sp.Start, sp.Length, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := src.ReadAt(buf, off)
	if int64(read) == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read %d bytes at %d: %w", n, off, err)
}

// Header returns the raw header blob of record i.
func (db *DB) Header(i int) ([]byte, error) {
	sp, err := db.HeaderSpan(i)
	if err != nil {
		return nil, err
	}
	blob, err := readSpan(db.headers, sp)
	if err != nil {
		return nil, fmt.Errorf("record %d header: %w", i, err)
	}
	return blob, nil
}

// Identifiers returns the identifiers of record i in header order, with the
// ordinal marker removed and fields split according to the split mode.
func (db *DB) Identifiers(i int) ([]string, error) {
	blob, err := db.Header(i)
	if err != nil {
		return nil, err
	}
	ids, err := visible.Identifiers(blob, db.transform)
	if err != nil {
		return nil, fmt.Errorf("record %d header: %w", i, err)
	}
	return ids, nil
}

// Sequence returns the residues of record i.
func (db *DB) Sequence(i int) (string, error) {
	sp, err := db.SequenceSpan(i)
	if err != nil {
		return "", err
	}
	raw, err := readSpan(db.sequences, sp)
	if err != nil {
		return "", fmt.Errorf("record %d sequence: %w", i, err)
	}
	residues, err := residue.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("record %d sequence at %d: %w", i, sp.Start, err)
	}
	return residues, nil
}

// Record returns the identifiers and residues of record i.
func (db *DB) Record(i int) (Record, error) {
	ids, err := db.Identifiers(i)
	if err != nil {
		return Record{}, err
	}
	residues, err := db.Sequence(i)
	if err != nil {
		return Record{}, err
	}
	return Record{Ordinal: i, IDs: ids, Residues: residues}, nil
}

// Locate returns the ordinal of the record carrying id.
//
// In scan mode the first record whose raw header contains id as a byte
// substring is returned, which may be a record with a longer identifier.
func (db *DB) Locate(id string) (int, error) {
	ord, err := db.strategy.Locate(id)
	if errors.Is(err, ErrNotFound) {
		db.log().Debug("identifier not found", slog.String("id", id), slog.String("lookup", db.mode.String()))
	}
	if err != nil {
		return 0, err
	}
	return ord, nil
}

// Lookup returns the sequence range of the record carrying id.
func (db *DB) Lookup(id string) (Span, error) {
	ord, err := db.Locate(id)
	if err != nil {
		return Span{}, err
	}
	return db.SequenceSpan(ord)
}

// Get returns the record carrying id. Absent identifiers return an error
// wrapping ErrNotFound.
func (db *DB) Get(id string) (Record, error) {
	ord, err := db.Locate(id)
	if err != nil {
		return Record{}, err
	}
	return db.Record(ord)
}

// Synonyms returns every identifier of the record carrying id, including
// id itself, in header order.
func (db *DB) Synonyms(id string) ([]string, error) {
	ord, err := db.Locate(id)
	if err != nil {
		return nil, err
	}
	return db.Identifiers(ord)
}

// Info summarizes a database.
type Info struct {
	Title         string
	Version       uint32
	Protein       bool
	Records       int
	IndexBytes    int64
	HeaderBytes   int64
	SequenceBytes int64
	LookupMode    LookupMode
	SplitMode     SplitMode
}

// Info returns a summary of the database.
func (db *DB) Info() Info {
	return Info{
		Title:         db.idx.Title(),
		Version:       db.idx.Version(),
		Protein:       db.idx.Type() == index.TypeProtein,
		Records:       db.idx.Len(),
		IndexBytes:    db.index.Size(),
		HeaderBytes:   db.headers.Size(),
		SequenceBytes: db.sequences.Size(),
		LookupMode:    db.mode,
		SplitMode:     db.split,
	}
}

// IndexDigest returns the sha256 digest of the index stream. Two databases
// with equal index digests have identical tables and title.
func (db *DB) IndexDigest() (digest.Digest, error) {
	d, err := digest.Canonical.FromReader(io.NewSectionReader(db.index, 0, db.index.Size()))
	if err != nil {
		return "", fmt.Errorf("digest index: %w", err)
	}
	return d, nil
}

// headerTable exposes header blobs to the lookup strategies.
type headerTable struct {
	db *DB
}

func (t headerTable) Len() int {
	return t.db.Len()
}

// HeaderRange reads the blobs of records [lo, hi) with one read. Header
// blobs are contiguous in the stream.
func (t headerTable) HeaderRange(lo, hi int) ([][]byte, error) {
	if lo >= hi {
		return nil, nil
	}
	first, err := t.db.HeaderSpan(lo)
	if err != nil {
		return nil, err
	}
	last, err := t.db.HeaderSpan(hi - 1)
	if err != nil {
		return nil, err
	}
	buf, err := readSpan(t.db.headers, Span{Start: first.Start, Length: last.End() - first.Start})
	if err != nil {
		return nil, fmt.Errorf("records [%d, %d) headers: %w", lo, hi, err)
	}
	blobs := make([][]byte, 0, hi-lo)
	for i := lo; i < hi; i++ {
		sp, _ := t.db.idx.Header(i)
		start := sp.Start - first.Start
		blobs = append(blobs, buf[start:start+sp.Length:start+sp.Length])
	}
	return blobs, nil
}
