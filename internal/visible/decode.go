// Package visible decodes the tagged, length-prefixed text fields embedded in
// header blobs and turns them into identifier lists.
package visible

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/meigma/blastdb/internal/binread"
)

// Tag marks the start of a visible string field.
const Tag byte = 0x1a

const (
	longFormBit  = 0x80
	lengthMask   = 0x7f
	maxLengthLen = 8
)

// ErrMalformed is returned when a field's length or payload cannot be decoded.
var ErrMalformed = errors.New("blastdb: malformed visible string")

// StringError describes a field that could not be decoded. It carries the
// whole blob so callers can report it.
type StringError struct {
	// Blob is the header blob being decoded.
	Blob []byte

	// Offset is the position of the field's tag byte within Blob.
	Offset int

	// Descriptor is the length descriptor byte following the tag.
	Descriptor byte

	// LengthBytes is the number of long-form length bytes (0 for the short form).
	LengthBytes int

	// Length is the decoded payload length, when it could be computed.
	Length uint64

	// Reason says what went wrong.
	Reason string
}

func (e *StringError) Error() string {
	return fmt.Sprintf("%v at offset %d: %s (descriptor 0x%02x, length bytes %d, length %d, blob %x)",
		ErrMalformed, e.Offset, e.Reason, e.Descriptor, e.LengthBytes, e.Length, e.Blob)
}

func (e *StringError) Unwrap() error {
	return ErrMalformed
}

// Decode returns every visible string in blob, in order.
//
// The scan looks for the tag byte from just past the previous field. The byte
// after a tag is the length descriptor: with the high bit clear it is the
// length itself; with it set, the low seven bits count the big-endian length
// bytes that follow. Any field that runs past the blob or holds non-ASCII
// bytes aborts the decode with a *StringError.
func Decode(blob []byte) ([]string, error) {
	var fields []string
	pos := 0
	for {
		rel := bytes.IndexByte(blob[pos:], Tag)
		if rel < 0 {
			return fields, nil
		}
		tagAt := pos + rel
		field, next, err := decodeField(blob, tagAt)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
		pos = next
	}
}

// decodeField decodes the field whose tag sits at tagAt and returns the
// payload and the position just past it.
func decodeField(blob []byte, tagAt int) (string, int, error) {
	fail := func(e StringError) (string, int, error) {
		e.Blob = blob
		e.Offset = tagAt
		return "", 0, &e
	}

	cursor := tagAt + 1
	if cursor >= len(blob) {
		return fail(StringError{Reason: "tag at end of blob"})
	}
	desc := blob[cursor]
	cursor++

	var length uint64
	lengthBytes := 0
	if desc&longFormBit == 0 {
		length = uint64(desc)
	} else {
		lengthBytes = int(desc & lengthMask)
		if lengthBytes == 0 || lengthBytes > maxLengthLen {
			return fail(StringError{Descriptor: desc, LengthBytes: lengthBytes, Reason: "unsupported long-form length width"})
		}
		if cursor+lengthBytes > len(blob) {
			return fail(StringError{Descriptor: desc, LengthBytes: lengthBytes, Reason: "length bytes run past end of blob"})
		}
		v, err := binread.Uint(blob[cursor : cursor+lengthBytes])
		if err != nil {
			return fail(StringError{Descriptor: desc, LengthBytes: lengthBytes, Reason: err.Error()})
		}
		length = v
		cursor += lengthBytes
	}

	if length > uint64(len(blob)-cursor) {
		return fail(StringError{Descriptor: desc, LengthBytes: lengthBytes, Length: length, Reason: "payload runs past end of blob"})
	}
	end := cursor + int(length)
	payload := blob[cursor:end]
	for i, c := range payload {
		if c > 0x7f {
			return fail(StringError{
				Descriptor:  desc,
				LengthBytes: lengthBytes,
				Length:      length,
				Reason:      fmt.Sprintf("payload byte %d is not ASCII (0x%02x)", i, c),
			})
		}
	}
	return string(payload), end, nil
}
