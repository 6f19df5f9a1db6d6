package blastdb

import "iter"

// Iterator walks records in ordinal order. It is a single-goroutine cursor;
// create one per goroutine.
type Iterator struct {
	db   *DB
	next int
	rec  Record
	err  error
}

// Iterator returns a cursor positioned before the first record.
func (db *DB) Iterator() *Iterator {
	return &Iterator{db: db}
}

// Next advances to the next record. It returns false once every record has
// been read or a read fails; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.err != nil || it.next >= it.db.Len() {
		it.rec = Record{}
		return false
	}
	rec, err := it.db.Record(it.next)
	if err != nil {
		it.err = err
		it.rec = Record{}
		return false
	}
	it.rec = rec
	it.next++
	return true
}

// Record returns the record read by the last successful Next.
func (it *Iterator) Record() Record {
	return it.rec
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Records returns an iterator over every record in ordinal order. Iteration
// stops after the first error is yielded. Each call starts from the first
// record.
func (db *DB) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		it := db.Iterator()
		for it.Next() {
			if !yield(it.Record(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}
