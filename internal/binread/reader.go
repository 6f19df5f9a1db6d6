// Package binread decodes fixed-width big-endian integers from a random-access
// byte source at known or sequential positions.
package binread

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShortRead is returned when the source ends before a read completes.
var ErrShortRead = errors.New("binread: short read")

// ErrWidth is returned when a variable-width integer does not fit in 64 bits.
var ErrWidth = errors.New("binread: integer wider than 8 bytes")

// Reader is a forward cursor over an io.ReaderAt.
//
// Reader keeps its own offset, so several Readers may share one source.
// A single Reader is not safe for concurrent use.
type Reader struct {
	src io.ReaderAt
	off int64
	buf [4]byte
}

// New returns a Reader positioned at offset 0.
func New(src io.ReaderAt) *Reader {
	return &Reader{src: src}
}

// Offset returns the current absolute position.
func (r *Reader) Offset() int64 {
	return r.off
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(off int64) error {
	if off < 0 {
		return fmt.Errorf("binread: seek to negative offset %d", off)
	}
	r.off = off
	return nil
}

// Skip advances the cursor by n bytes without reading them.
func (r *Reader) Skip(n int64) error {
	return r.Seek(r.off + n)
}

// Uint32 reads a 4-byte big-endian unsigned integer and advances the cursor.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.fill(r.buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:]), nil
}

// Bytes reads exactly n bytes and advances the cursor.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("binread: negative length %d", n)
	}
	p := make([]byte, n)
	if err := r.fill(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) fill(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := r.src.ReadAt(p, r.off)
	if n == len(p) {
		// io.ReaderAt may report io.EOF alongside a full read at the end of the source.
		r.off += int64(n)
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: want %d bytes at offset %d, got %d", ErrShortRead, len(p), r.off, n)
	}
	return fmt.Errorf("read %d bytes at offset %d: %w", len(p), r.off, err)
}

// Uint decodes a big-endian unsigned integer of len(b) bytes.
// Empty input decodes to 0. Inputs longer than 8 bytes return ErrWidth.
func Uint(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, ErrWidth
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}
