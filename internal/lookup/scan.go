package lookup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/meigma/blastdb/internal/visible"
)

// Scan finds identifiers by byte-substring search over raw header blobs.
//
// No decoding happens, so an identifier that occurs inside a longer
// identifier, or inside incidental header bytes, matches that record. The
// first matching ordinal wins. Identifiers containing the ordinal marker are
// reserved and never match.
type Scan struct {
	headers Headers
	chunk   int
}

// NewScan returns a Scan over headers.
func NewScan(headers Headers) *Scan {
	return &Scan{headers: headers, chunk: defaultChunk}
}

// Locate implements Strategy.
func (s *Scan) Locate(id string) (int, error) {
	if id == "" || strings.Contains(id, visible.OrdinalMarker) {
		return 0, notFound(id)
	}
	needle := []byte(id)
	n := s.headers.Len()
	for lo := 0; lo < n; lo += s.chunk {
		hi := min(lo+s.chunk, n)
		blobs, err := s.headers.HeaderRange(lo, hi)
		if err != nil {
			return 0, fmt.Errorf("scan headers [%d, %d): %w", lo, hi, err)
		}
		for j, blob := range blobs {
			if bytes.Contains(blob, needle) {
				return lo + j, nil
			}
		}
	}
	return 0, notFound(id)
}
