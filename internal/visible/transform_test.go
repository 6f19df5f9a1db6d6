package visible

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blastdb/testutil"
)

func TestExcludeOrdinal(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ExcludeOrdinal("BL_ORD_ID:17"))
	assert.Nil(t, ExcludeOrdinal("lcl|x BL_ORD_ID"))
	assert.Equal(t, []string{"lcl|x"}, ExcludeOrdinal("lcl|x"))
}

func TestSplitSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"gi|1", "gi|2", "gi|3"}, SplitSpace("gi|1 gi|2 gi|3"))
	assert.Equal(t, []string{"", "a", "", "b", ""}, SplitSpace(" a  b "))
	assert.Equal(t, []string{""}, SplitSpace(""))
}

func TestSplitSpace_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, field := range []string{
		"single",
		"sp|P69905|HBA_HUMAN Hemoglobin subunit alpha",
		"a b c d e f",
		" a b",
		"a b ",
		"a  b",
		" ",
		"",
	} {
		assert.Equal(t, field, strings.Join(SplitSpace(field), " "))
	}
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	upper := func(f string) []string { return []string{strings.ToUpper(f)} }

	// The marker is matched before splitting, so the whole field is dropped.
	assert.Nil(t, Chain(ExcludeOrdinal, SplitSpace)("lcl|a BL_ORD_ID:1"))
	assert.Equal(t, []string{"LCL|A", "LCL|B"}, Chain(SplitSpace, upper)("lcl|a lcl|b"))
	assert.Equal(t, []string{"x"}, Chain()("x"))
}

func TestParseSplitMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    SplitMode
		wantErr bool
	}{
		{"", SplitNone, false},
		{"none", SplitNone, false},
		{"Space", SplitOnSpace, false},
		{"tab", SplitNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSplitMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) SplitMode {
	t.Helper()
	m, err := ParseSplitMode(s)
	require.NoError(t, err)
	return m
}

func TestIdentifiers_Modes(t *testing.T) {
	t.Parallel()

	blob := testutil.HeaderBlob("lcl|ubq1 lcl|ubq_alias", "BL_ORD_ID:1", "gi|42")

	ids, err := Identifiers(blob, ForMode(SplitNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"lcl|ubq1 lcl|ubq_alias", "gi|42"}, ids)

	ids, err = Identifiers(blob, ForMode(SplitOnSpace))
	require.NoError(t, err)
	assert.Equal(t, []string{"lcl|ubq1", "lcl|ubq_alias", "gi|42"}, ids)

	for _, id := range ids {
		assert.NotContains(t, id, OrdinalMarker)
	}
}

func TestIdentifiers_DropsEmpty(t *testing.T) {
	t.Parallel()

	blob := testutil.HeaderBlob("", " lcl|a  lcl|b ", "ab")

	ids, err := Identifiers(blob, ForMode(SplitNone))
	require.NoError(t, err)
	assert.Equal(t, []string{" lcl|a  lcl|b ", "ab"}, ids)

	ids, err = Identifiers(blob, ForMode(SplitOnSpace))
	require.NoError(t, err)
	assert.Equal(t, []string{"lcl|a", "lcl|b", "ab"}, ids)

	ids, err = Identifiers(testutil.HeaderBlob("", " "), ForMode(SplitOnSpace))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIdentifiers_PropagatesDecodeError(t *testing.T) {
	t.Parallel()

	_, err := Identifiers([]byte{Tag, 0x10, 'a'}, ForMode(SplitNone))
	require.ErrorIs(t, err, ErrMalformed)
}
