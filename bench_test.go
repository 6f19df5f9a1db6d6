package blastdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"testing"
	"time"

	dbhttp "github.com/meigma/blastdb/http"
	"github.com/meigma/blastdb/testutil"
)

var (
	benchSinkInt    int
	benchSinkRecord Record
	errBenchSink    error //nolint:errname // not a sentinel error, just a sink variable
)

func init() {
	if os.Getenv("BLASTDB_PROFILE_BLOCK") == "1" {
		runtime.SetBlockProfileRate(1)
	}
	if os.Getenv("BLASTDB_PROFILE_MUTEX") == "1" {
		runtime.SetMutexProfileFraction(1)
	}
}

func benchID(i int) string {
	return fmt.Sprintf("lcl|bench%07d", i)
}

func makeBenchDatabase(b *testing.B, records int) testutil.Files {
	b.Helper()

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // reproducible benchmark data
	const letters = "ACDEFGHIKLMNPQRSTVWY"
	d := testutil.Database{Title: "bench", Records: make([]testutil.Record, records)}
	seq := make([]byte, 300)
	for i := range records {
		for j := range seq {
			seq[j] = letters[rng.Intn(len(letters))]
		}
		d.Records[i] = testutil.Record{
			Header: testutil.HeaderBlob(
				benchID(i),
				fmt.Sprintf("sp|Q%05d|BENCH_%d benchmark protein", i, i),
				fmt.Sprintf("%s:%d", OrdinalMarker, i),
			),
			Residues: string(seq),
		}
	}
	return d.Build(b)
}

func newBenchDB(b *testing.B, files testutil.Files, opts ...Option) *DB {
	b.Helper()
	db, err := New(
		testutil.NewMockByteSource(files.Index),
		testutil.NewMockByteSource(files.Headers),
		testutil.NewMockByteSource(files.Sequences),
		opts...,
	)
	if err != nil {
		b.Fatal(err)
	}
	return db
}

func BenchmarkOpenEager(b *testing.B) {
	for _, records := range []int{1_000, 50_000} {
		files := makeBenchDatabase(b, records)
		for _, workers := range []int{1, 0} {
			b.Run(fmt.Sprintf("records=%d/workers=%d", records, workers), func(b *testing.B) {
				b.SetBytes(int64(len(files.Headers)))
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					db, err := New(
						testutil.NewMockByteSource(files.Index),
						testutil.NewMockByteSource(files.Headers),
						testutil.NewMockByteSource(files.Sequences),
						WithEagerIndex(true), WithIndexWorkers(workers),
					)
					if err != nil {
						b.Fatal(err)
					}
					benchSinkInt = db.Len()
				}
			})
		}
	}
}

func BenchmarkGet(b *testing.B) {
	const records = 10_000
	files := makeBenchDatabase(b, records)

	for _, mode := range []LookupMode{ModeScan, ModeEager} {
		db := newBenchDB(b, files, WithLookupMode(mode))
		for _, position := range []string{"first", "last", "random"} {
			b.Run(mode.String()+"/"+position, func(b *testing.B) {
				rng := rand.New(rand.NewSource(1)) //nolint:gosec // reproducible benchmark selection
				b.ReportAllocs()
				b.ResetTimer()
				for b.Loop() {
					i := 0
					switch position {
					case "last":
						i = records - 1
					case "random":
						i = rng.Intn(records)
					}
					benchSinkRecord, errBenchSink = db.Get(benchID(i))
					if errBenchSink != nil {
						b.Fatal(errBenchSink)
					}
				}
			})
		}
	}
}

func BenchmarkRecords(b *testing.B) {
	files := makeBenchDatabase(b, 5_000)
	db := newBenchDB(b, files)
	b.SetBytes(int64(len(files.Sequences)))
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		for rec, err := range db.Records() {
			if err != nil {
				b.Fatal(err)
			}
			benchSinkRecord = rec
		}
	}
}

func BenchmarkWriteFASTA(b *testing.B) {
	files := makeBenchDatabase(b, 5_000)
	db := newBenchDB(b, files)
	b.SetBytes(int64(len(files.Sequences)))
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		benchSinkInt, errBenchSink = db.WriteFASTA(io.Discard, DefaultFASTAWidth)
		if errBenchSink != nil {
			b.Fatal(errBenchSink)
		}
	}
}

func BenchmarkGetHTTP(b *testing.B) {
	const records = 2_000
	files := makeBenchDatabase(b, records)
	streams := map[string][]byte{
		"/bench" + IndexExt:    files.Index,
		"/bench" + HeaderExt:   files.Headers,
		"/bench" + SequenceExt: files.Sequences,
	}
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, ok := streams[r.URL.Path]
		if !ok {
			nethttp.NotFound(w, r)
			return
		}
		nethttp.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(data))
	}))
	b.Cleanup(srv.Close)

	indexURL, headersURL, sequencesURL := dbhttp.StemURLs(srv.URL + "/bench")
	var srcs []ByteSource
	for _, u := range []string{indexURL, headersURL, sequencesURL} {
		src, err := dbhttp.NewSource(context.Background(), u)
		if err != nil {
			b.Fatal(err)
		}
		srcs = append(srcs, src)
	}

	db, err := New(srcs[0], srcs[1], srcs[2], WithEagerIndex(true))
	if err != nil {
		b.Fatal(err)
	}

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // reproducible benchmark selection
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		benchSinkRecord, errBenchSink = db.Get(benchID(rng.Intn(records)))
		if errBenchSink != nil {
			b.Fatal(errBenchSink)
		}
	}
}
