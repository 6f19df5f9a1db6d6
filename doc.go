// Package blastdb reads compiled protein sequence databases without loading
// them into memory.
//
// A database is three streams sharing a path stem:
//   - stem.pin: the index, holding the title and two offset tables
//   - stem.phr: header blobs, one per record, holding tagged identifier strings
//   - stem.psq: residue codes, one byte per residue, each sequence followed by a terminator
//
// # Quick Start
//
// Open a database from local files and fetch a record by identifier:
//
//	db, err := blastdb.Open("/data/swissprot", blastdb.WithEagerIndex(true))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	rec, err := db.Get("sp|P69905|HBA_HUMAN")
//	if errors.Is(err, blastdb.ErrNotFound) {
//	    // absent
//	}
//
// Walk every record in order:
//
//	for rec, err := range db.Records() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(rec.ID(), len(rec.Residues))
//	}
//
// # Lookup modes
//
// By default identifiers are found by scanning raw header bytes for the
// identifier as a substring, which needs no memory but can match a record
// whose identifier merely contains the one requested. [WithEagerIndex]
// decodes every header once at open time and answers lookups from a map.
//
// # Remote databases
//
// [New] accepts any [ByteSource]. The http subpackage provides sources backed
// by range requests, and [WithBlockCache] keeps fetched blocks on local disk:
//
//	pin, phr, psq := dbhttp.StemURLs("https://example.org/db/swissprot")
//	// open three dbhttp.Sources, then:
//	db, err := blastdb.New(index, headers, sequences,
//	    blastdb.WithBlockCache(diskCache),
//	)
//
// A DB is safe for concurrent use. An [Iterator] is not.
package blastdb
