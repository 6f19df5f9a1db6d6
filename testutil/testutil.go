// Package testutil builds small sequence databases in memory for tests.
package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/meigma/blastdb/internal/residue"
)

// Tag and framing bytes used when building header blobs.
const (
	visibleStringTag = 0x1a
	// OrdinalMarker is the internal identifier prefix written by database builders.
	OrdinalMarker = "BL_ORD_ID"
)

// headerPrefix and headerSuffix frame the visible strings like a
// Blast-def-line-set with indefinite lengths. Neither contains the string tag.
var (
	headerPrefix = []byte{0x30, 0x80, 0x30, 0x80, 0xa0, 0x80}
	fieldTrailer = []byte{0x00, 0x00}
	headerSuffix = []byte{0x00, 0x00, 0x00, 0x00}
)

// Record is one sequence in a test database.
type Record struct {
	// Header is the raw header blob. Use HeaderBlob to build one.
	Header []byte

	// Residues is the protein sequence as letters from residue.Alphabet.
	Residues string
}

// Database describes a test database.
type Database struct {
	Title     string
	Timestamp string
	Records   []Record
}

// Files holds the three encoded streams of a database.
type Files struct {
	Index     []byte
	Headers   []byte
	Sequences []byte
}

// Build encodes the database into index, header and sequence streams and
// fails tb on invalid residues.
func (d Database) Build(tb testing.TB) Files {
	tb.Helper()

	files, err := d.Encode()
	if err != nil {
		tb.Fatalf("build database: %v", err)
	}
	return files
}

// Encode encodes the database into index, header and sequence streams.
//
// The sequence stream starts with a terminator byte and every sequence is
// followed by one, matching what database builders write.
func (d Database) Encode() (Files, error) {
	var headers, sequences bytes.Buffer
	headerOffsets := []uint32{0}
	sequences.WriteByte(0)
	sequenceOffsets := []uint32{1}

	for i, rec := range d.Records {
		headers.Write(rec.Header)
		headerOffsets = append(headerOffsets, uint32(headers.Len())) //nolint:gosec // test data is small

		codes, err := ResidueCodes(rec.Residues)
		if err != nil {
			return Files{}, fmt.Errorf("record %d: %w", i, err)
		}
		sequences.Write(codes)
		sequences.WriteByte(0)
		sequenceOffsets = append(sequenceOffsets, uint32(sequences.Len())) //nolint:gosec // test data is small
	}

	return Files{
		Index:     IndexBytes(d.Title, d.Timestamp, headerOffsets, sequenceOffsets),
		Headers:   headers.Bytes(),
		Sequences: sequences.Bytes(),
	}, nil
}

// IndexBytes encodes an index stream with explicit cumulative offset tables.
// Both tables must hold count+1 entries; count is taken from headerOffsets.
func IndexBytes(title, timestamp string, headerOffsets, sequenceOffsets []uint32) []byte {
	var buf bytes.Buffer
	put32 := func(v uint32) {
		_ = binary.Write(&buf, binary.BigEndian, v) //nolint:errcheck // bytes.Buffer never fails
	}

	// version 4, protein
	put32(4)
	put32(1)

	put32(uint32(len(title))) //nolint:gosec // test data is small
	buf.WriteString(title)
	put32(uint32(len(timestamp))) //nolint:gosec // test data is small
	buf.WriteString(timestamp)

	count := 0
	if len(headerOffsets) > 0 {
		count = len(headerOffsets) - 1
	}
	put32(uint32(count)) //nolint:gosec // test data is small

	// residue total (8 bytes) and longest sequence (4 bytes)
	buf.Write(make([]byte, 12))

	for _, off := range headerOffsets {
		put32(off)
	}
	for _, off := range sequenceOffsets {
		put32(off)
	}
	return buf.Bytes()
}

// VisibleString encodes s as a tagged field, using the long length form when
// s is longer than 127 bytes.
func VisibleString(s string) []byte {
	out := []byte{visibleStringTag}
	n := len(s)
	if n < 0x80 {
		out = append(out, byte(n))
	} else {
		var lenBytes []byte
		for v := n; v > 0; v >>= 8 {
			lenBytes = append([]byte{byte(v)}, lenBytes...)
		}
		out = append(out, 0x80|byte(len(lenBytes)))
		out = append(out, lenBytes...)
	}
	return append(out, s...)
}

// HeaderBlob builds a header blob holding each field as a visible string.
func HeaderBlob(fields ...string) []byte {
	blob := append([]byte(nil), headerPrefix...)
	for _, f := range fields {
		blob = append(blob, VisibleString(f)...)
		blob = append(blob, fieldTrailer...)
	}
	return append(blob, headerSuffix...)
}

// ResidueCodes converts letters into residue codes.
func ResidueCodes(letters string) ([]byte, error) {
	out := make([]byte, len(letters))
	for i := range len(letters) {
		code := strings.IndexByte(residue.Alphabet, letters[i])
		if code < 0 {
			return nil, fmt.Errorf("residue %q at %d is not in the alphabet", letters[i], i)
		}
		out[i] = byte(code)
	}
	return out, nil
}

// WriteFiles writes the database to dir as name.pin, name.phr and name.psq
// and returns the path stem.
func WriteFiles(tb testing.TB, dir, name string, d Database) string {
	tb.Helper()

	files := d.Build(tb)
	stem := filepath.Join(dir, name)
	for ext, data := range map[string][]byte{
		".pin": files.Index,
		".phr": files.Headers,
		".psq": files.Sequences,
	} {
		if err := os.WriteFile(stem+ext, data, 0o644); err != nil {
			tb.Fatalf("write %s: %v", stem+ext, err)
		}
	}
	return stem
}

// SampleDatabase returns a small database exercising synonyms, split fields,
// ordinal markers and headers without any identifiers.
func SampleDatabase() Database {
	return Database{
		Title:     "sample protein db",
		Timestamp: "Jan 2, 2026  10:00 AM",
		Records: []Record{
			{
				Header:   HeaderBlob("sp|P69905|HBA_HUMAN Hemoglobin subunit alpha", "lcl|hba", OrdinalMarker+":0"),
				Residues: "MVLSPADKTNVKAAWGKVGAHAGEYGAEALERMFLSFPTTKTYFPHF",
			},
			{
				Header:   HeaderBlob("lcl|ubq1 lcl|ubq_alias", OrdinalMarker+":1"),
				Residues: "MQIFVKTLTGKTITLEVEPSDTIENVKAKIQDKEGIPPDQQRLIFAG",
			},
			{
				Header:   HeaderBlob(OrdinalMarker + ":2"),
				Residues: "ACDEFGHIKLMNPQRSTVWY",
			},
			{
				Header:   HeaderBlob("gi|12345|ref|NP_000001.1|", strings.Repeat("X", 300)),
				Residues: "MBZUOJX*",
			},
		},
	}
}

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string
	reads    atomic.Int64
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Reads returns how many ReadAt calls the source has served.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}
