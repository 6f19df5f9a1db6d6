package index

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/blastdb/internal/binread"
	"github.com/meigma/blastdb/internal/sizing"
)

// ErrMalformed is returned when the index stream does not match the expected layout.
var ErrMalformed = errors.New("blastdb: malformed index")

// Database types recorded in the second header word.
const (
	TypeNucleotide uint32 = 0
	TypeProtein    uint32 = 1
)

const (
	// prefixLen covers the version word, the type word and the title length.
	prefixLen = 12
	// countOffset is the distance from T+S to the sequence count.
	countOffset = 16
	// tablesOffset is the distance from T+S to the header offset table. The
	// twelve bytes after the count hold the residue total and the longest
	// sequence length.
	tablesOffset = 32
	// wordLen is the width of every table entry.
	wordLen = 4
)

// Span is a byte range within the header or sequence stream.
type Span struct {
	Start  uint64
	Length uint64
}

// End returns the offset one past the last byte of the span.
func (s Span) End() uint64 {
	return s.Start + s.Length
}

// Index holds the decoded index stream: the title and the two parallel offset
// tables. It is immutable after Parse and safe for concurrent use.
type Index struct {
	version   uint32
	dbType    uint32
	title     string
	headers   []Span
	sequences []Span
}

// Parse decodes an index stream of the given size.
//
// Short reads and layouts that cannot describe valid tables return errors
// wrapping ErrMalformed. Other read failures are returned as I/O errors.
func Parse(src io.ReaderAt, size int64) (*Index, error) {
	r := binread.New(src)

	version, err := r.Uint32()
	if err != nil {
		return nil, malformed("version", err)
	}
	dbType, err := r.Uint32()
	if err != nil {
		return nil, malformed("database type", err)
	}

	titleLen, err := r.Uint32()
	if err != nil {
		return nil, malformed("title length", err)
	}
	if int64(titleLen) > size-prefixLen {
		return nil, fmt.Errorf("%w: title length %d exceeds index size %d", ErrMalformed, titleLen, size)
	}
	titleBytes, err := r.Bytes(int(titleLen))
	if err != nil {
		return nil, malformed("title", err)
	}
	if i := nonASCII(titleBytes); i >= 0 {
		return nil, fmt.Errorf("%w: title byte %d is not ASCII (0x%02x)", ErrMalformed, i, titleBytes[i])
	}

	stampLen, err := r.Uint32()
	if err != nil {
		return nil, malformed("timestamp length", err)
	}

	base := int64(titleLen) + int64(stampLen)
	if err := r.Seek(base + countOffset); err != nil {
		return nil, malformed("sequence count", err)
	}
	count, err := r.Uint32()
	if err != nil {
		return nil, malformed("sequence count", err)
	}

	tables := base + tablesOffset
	need := 2 * (int64(count) + 1) * wordLen
	if tables+need > size {
		return nil, fmt.Errorf("%w: %d sequences need %d table bytes at offset %d, index has %d bytes",
			ErrMalformed, count, need, tables, size)
	}
	if err := r.Seek(tables); err != nil {
		return nil, malformed("offset tables", err)
	}
	n, err := sizing.ToInt(uint64(count), fmt.Errorf("%w: sequence count %d overflows int", ErrMalformed, count))
	if err != nil {
		return nil, err
	}

	headers, err := readTable(r, n, 0)
	if err != nil {
		return nil, fmt.Errorf("header table: %w", err)
	}
	// Every sequence is followed by a single terminator byte that is not part
	// of the residues.
	sequences, err := readTable(r, n, 1)
	if err != nil {
		return nil, fmt.Errorf("sequence table: %w", err)
	}

	return &Index{
		version:   version,
		dbType:    dbType,
		title:     string(titleBytes),
		headers:   headers,
		sequences: sequences,
	}, nil
}

// readTable reads count+1 cumulative offsets and returns count spans. trim is
// subtracted from every span length.
func readTable(r *binread.Reader, count int, trim uint64) ([]Span, error) {
	prev, err := r.Uint32()
	if err != nil {
		return nil, malformed("first offset", err)
	}
	spans := make([]Span, count)
	for j := range count {
		next, err := r.Uint32()
		if err != nil {
			return nil, malformed(fmt.Sprintf("offset %d", j+1), err)
		}
		if next < prev {
			return nil, fmt.Errorf("%w: offset %d (%d) is below offset %d (%d)", ErrMalformed, j+1, next, j, prev)
		}
		length := uint64(next - prev)
		if length < trim {
			return nil, fmt.Errorf("%w: entry %d spans %d bytes, need at least %d", ErrMalformed, j, length, trim)
		}
		spans[j] = Span{Start: uint64(prev), Length: length - trim}
		prev = next
	}
	return spans, nil
}

// malformed maps short reads to ErrMalformed and passes other errors through.
func malformed(field string, err error) error {
	if errors.Is(err, binread.ErrShortRead) {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, field, err)
	}
	return fmt.Errorf("read %s: %w", field, err)
}

func nonASCII(b []byte) int {
	for i, c := range b {
		if c > 0x7f {
			return i
		}
	}
	return -1
}

// Title returns the database title.
func (idx *Index) Title() string {
	return idx.title
}

// Version returns the format version word. It is not validated.
func (idx *Index) Version() uint32 {
	return idx.version
}

// Type returns the database type word. It is not validated.
func (idx *Index) Type() uint32 {
	return idx.dbType
}

// Len returns the number of sequences.
func (idx *Index) Len() int {
	return len(idx.sequences)
}

// Header returns the header span for sequence i.
func (idx *Index) Header(i int) (Span, bool) {
	if i < 0 || i >= len(idx.headers) {
		return Span{}, false
	}
	return idx.headers[i], true
}

// Sequence returns the sequence span for sequence i.
func (idx *Index) Sequence(i int) (Span, bool) {
	if i < 0 || i >= len(idx.sequences) {
		return Span{}, false
	}
	return idx.sequences[i], true
}

// Headers returns a copy of the header table.
func (idx *Index) Headers() []Span {
	return append([]Span(nil), idx.headers...)
}

// Sequences returns a copy of the sequence table.
func (idx *Index) Sequences() []Span {
	return append([]Span(nil), idx.sequences...)
}
