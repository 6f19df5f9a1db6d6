package visible

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blastdb/testutil"
)

func TestDecode_ShortForm(t *testing.T) {
	t.Parallel()

	blob := []byte("\x1a\x08lcl|seq1\x1a\x09BL_ORD_ID")

	fields, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"lcl|seq1", "BL_ORD_ID"}, fields)

	ids, err := Identifiers(blob, ForMode(SplitNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"lcl|seq1"}, ids)
}

func TestDecode_LongForm(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("A", 256)
	blob := append([]byte{0x30, 0x80, Tag, 0x82, 0x01, 0x00}, payload...)
	blob = append(blob, Tag, 0x02, 'o', 'k', 0x00, 0x00)

	fields, err := Decode(blob)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Len(t, fields[0], 256)
	assert.Equal(t, payload, fields[0])
	assert.Equal(t, "ok", fields[1])
}

func TestDecode_PayloadMayContainTag(t *testing.T) {
	t.Parallel()

	// The cursor skips the payload, so a tag byte inside it is not a field.
	blob := []byte{Tag, 0x03, 'a', Tag, 'b', Tag, 0x01, 'c'}
	fields, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\x1ab", "c"}, fields)
}

func TestDecode_NoFields(t *testing.T) {
	t.Parallel()

	for _, blob := range [][]byte{nil, {}, {0x30, 0x80, 0x00, 0x00}} {
		fields, err := Decode(blob)
		require.NoError(t, err)
		assert.Empty(t, fields)
	}
}

func TestDecode_MatchesBuilder(t *testing.T) {
	t.Parallel()

	want := []string{"sp|P69905|HBA_HUMAN", "", strings.Repeat("Q", 127), strings.Repeat("W", 128), strings.Repeat("Y", 70000)}
	fields, err := Decode(testutil.HeaderBlob(want...))
	require.NoError(t, err)
	assert.Equal(t, want, fields)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		blob        []byte
		offset      int
		lengthBytes int
		length      uint64
	}{
		{"tag at end", []byte{0x30, Tag}, 1, 0, 0},
		{"short payload", []byte{Tag, 0x05, 'a', 'b'}, 0, 0, 5},
		{"long form width zero", []byte{Tag, 0x80, 'a'}, 0, 0, 0},
		{"long form too wide", []byte{Tag, 0x89, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 0, 9, 0},
		{"truncated length bytes", []byte{Tag, 0x82, 0x01}, 0, 2, 0},
		{"long payload past end", []byte{0x00, Tag, 0x82, 0x01, 0x00, 'x'}, 1, 2, 256},
		{"non ascii payload", []byte{Tag, 0x02, 'o', 'k', Tag, 0x02, 0xc3, 0xa9}, 4, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fields, err := Decode(tt.blob)
			require.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, fields)

			var strErr *StringError
			require.ErrorAs(t, err, &strErr)
			assert.True(t, bytes.Equal(tt.blob, strErr.Blob))
			assert.Equal(t, tt.offset, strErr.Offset)
			assert.Equal(t, tt.lengthBytes, strErr.LengthBytes)
			assert.Equal(t, tt.length, strErr.Length)
			assert.NotEmpty(t, strErr.Reason)
			assert.Contains(t, err.Error(), "offset")
		})
	}
}
