package blastdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blastdb/testutil"
)

func collect(t *testing.T, it *Iterator) []Record {
	t.Helper()
	var out []Record
	for it.Next() {
		out = append(out, it.Record())
	}
	require.NoError(t, it.Err())
	return out
}

func TestIterator_ExhaustionAndReplay(t *testing.T) {
	t.Parallel()

	sample := testutil.SampleDatabase()
	db := newDB(t, sample)

	it := db.Iterator()
	first := collect(t, it)
	require.Len(t, first, db.Len())
	for i, rec := range first {
		assert.Equal(t, i, rec.Ordinal)
		assert.Equal(t, sample.Records[i].Residues, rec.Residues)
	}

	assert.False(t, it.Next(), "exhausted iterator stays exhausted")
	assert.Equal(t, Record{}, it.Record())
	require.NoError(t, it.Err())

	assert.Equal(t, first, collect(t, db.Iterator()))
}

func TestIterator_Empty(t *testing.T) {
	t.Parallel()

	db := newDB(t, testutil.Database{Title: "empty"})
	assert.Zero(t, db.Len())
	it := db.Iterator()
	assert.False(t, it.Next())
	require.NoError(t, it.Err())

	for range db.Records() {
		t.Fatal("empty database yielded a record")
	}
}

func TestRecords_EarlyStop(t *testing.T) {
	t.Parallel()

	db := newDB(t, testutil.SampleDatabase())
	var seen []int
	for rec, err := range db.Records() {
		require.NoError(t, err)
		seen = append(seen, rec.Ordinal)
		if rec.Ordinal == 1 {
			break
		}
	}
	assert.Equal(t, []int{0, 1}, seen)

	var again []int
	for rec, err := range db.Records() {
		require.NoError(t, err)
		again = append(again, rec.Ordinal)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, again)
}

func TestRecords_YieldsError(t *testing.T) {
	t.Parallel()

	d := testutil.SampleDatabase()
	d.Records[2].Header = []byte{0x1a}
	db := newDB(t, d)

	var ordinals []int
	var gotErr error
	for rec, err := range db.Records() {
		if err != nil {
			gotErr = err
			continue
		}
		ordinals = append(ordinals, rec.Ordinal)
	}
	assert.Equal(t, []int{0, 1}, ordinals)
	require.ErrorIs(t, gotErr, ErrMalformedString)
	assert.False(t, errors.Is(gotErr, ErrNotFound))
}
