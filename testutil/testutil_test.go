package testutil

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	d := Database{
		Title: "t",
		Records: []Record{
			{Header: HeaderBlob("lcl|a"), Residues: "AC"},
			{Header: HeaderBlob("lcl|b"), Residues: ""},
		},
	}
	files, err := d.Encode()
	require.NoError(t, err)

	// terminator, A, C, terminator, terminator
	assert.Equal(t, []byte{0, 1, 3, 0, 0}, files.Sequences)
	assert.Equal(t, append(HeaderBlob("lcl|a"), HeaderBlob("lcl|b")...), files.Headers)

	// version, type, title length, "t", timestamp length, count
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(files.Index[4+4+4+1+4:]))
}

func TestEncode_InvalidResidue(t *testing.T) {
	t.Parallel()

	d := Database{Records: []Record{{Residues: "AC"}, {Residues: "A1"}}}
	_, err := d.Encode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestVisibleString_LongForm(t *testing.T) {
	t.Parallel()

	short := VisibleString("abc")
	assert.Equal(t, []byte{0x1a, 3, 'a', 'b', 'c'}, short)

	long := VisibleString(string(make([]byte, 300)))
	assert.Equal(t, []byte{0x1a, 0x82, 0x01, 0x2c}, long[:4])
	assert.Len(t, long, 4+300)
}
