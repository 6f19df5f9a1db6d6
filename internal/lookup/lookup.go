// Package lookup resolves identifiers to record ordinals.
//
// Two strategies are provided. Eager decodes every header once and keeps an
// immutable identifier map. Scan reads headers in ordinal order on every call
// and reports the first one whose raw bytes contain the identifier.
package lookup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no record carries the identifier.
var ErrNotFound = errors.New("blastdb: identifier not found")

// Headers gives strategies access to header blobs by ordinal.
type Headers interface {
	// Len returns the number of records.
	Len() int

	// HeaderRange returns the header blobs of records [lo, hi).
	HeaderRange(lo, hi int) ([][]byte, error)
}

// Strategy locates the ordinal of the record carrying an identifier.
type Strategy interface {
	Locate(id string) (int, error)
}

// Mode selects a Strategy at open time.
type Mode uint8

const (
	// ModeScan searches header bytes on every lookup.
	ModeScan Mode = iota

	// ModeEager builds the identifier map once.
	ModeEager
)

func (m Mode) String() string {
	switch m {
	case ModeScan:
		return "scan"
	case ModeEager:
		return "eager"
	default:
		return "unknown"
	}
}

// ParseMode parses "scan" or "eager".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scan", "lazy":
		return ModeScan, nil
	case "eager":
		return ModeEager, nil
	default:
		return ModeScan, fmt.Errorf("unknown lookup mode %q (want scan or eager)", s)
	}
}

// defaultChunk is how many headers are read per range read.
const defaultChunk = 1024

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}
