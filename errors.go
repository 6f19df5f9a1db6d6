package blastdb

import (
	"errors"

	"github.com/meigma/blastdb/internal/index"
	"github.com/meigma/blastdb/internal/lookup"
	"github.com/meigma/blastdb/internal/residue"
	"github.com/meigma/blastdb/internal/visible"
)

// Sentinel errors re-exported from internal packages.
var (
	// ErrNotFound is returned when no record carries the identifier.
	ErrNotFound = lookup.ErrNotFound

	// ErrMalformedIndex is returned when the index stream does not match the
	// expected layout, or its tables point outside the data streams.
	ErrMalformedIndex = index.ErrMalformed

	// ErrMalformedString is returned when a header field cannot be decoded.
	// Use errors.As with *StringError for the diagnostic details.
	ErrMalformedString = visible.ErrMalformed

	// ErrMalformedSequence is returned when a stored residue code has no symbol.
	ErrMalformedSequence = residue.ErrInvalidCode
)

// Sentinel errors specific to the blastdb package.
var (
	// ErrSizeOverflow is returned when a table offset does not fit in int64.
	ErrSizeOverflow = errors.New("blastdb: size overflow")

	// ErrClosed is returned by reads on a closed DBFile.
	ErrClosed = errors.New("blastdb: database closed")

	// ErrOutOfRange is returned for ordinals outside [0, Len()).
	ErrOutOfRange = errors.New("blastdb: ordinal out of range")
)

// Error types re-exported from internal packages.
type (
	// StringError describes a header field that could not be decoded.
	StringError = visible.StringError

	// CodeError describes a residue code outside the alphabet.
	CodeError = residue.CodeError
)
