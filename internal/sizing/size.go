// Package sizing provides overflow-checked conversions between table widths and Go ints.
package sizing

import "math"

// ToInt narrows a table value to int. Values above math.MaxInt yield overflowErr.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 narrows a table value to a file offset. Values above math.MaxInt64
// yield overflowErr.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// Range converts a (start, length) pair into int64 bounds suitable for
// io.ReaderAt, returning overflowErr if start+length leaves the int64 range.
func Range(start, length uint64, overflowErr error) (off, n int64, err error) {
	off, err = ToInt64(start, overflowErr)
	if err != nil {
		return 0, 0, err
	}
	n, err = ToInt64(length, overflowErr)
	if err != nil {
		return 0, 0, err
	}
	if off > math.MaxInt64-n {
		return 0, 0, overflowErr
	}
	return off, n, nil
}
