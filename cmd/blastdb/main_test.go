package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blastdb/testutil"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func sampleStem(t *testing.T) string {
	t.Helper()
	return testutil.WriteFiles(t, t.TempDir(), "sample", testutil.SampleDatabase())
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	stem := sampleStem(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no command", []string{"-db", stem}},
		{"no database", []string{"info"}},
		{"unknown command", []string{"-db", stem, "frobnicate"}},
		{"bad flag", []string{"-nope", "info"}},
		{"bad split", []string{"-db", stem, "-split", "comma", "info"}},
		{"get without ids", []string{"-db", stem, "get"}},
		{"synonyms arity", []string{"-db", stem, "synonyms", "a", "b"}},
		{"bad compression", []string{"-db", stem, "dump", "-compress", "gzip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestRun_Info(t *testing.T) {
	t.Parallel()

	code, out, _ := runCLI(t, "-db", sampleStem(t), "info")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "title:      sample protein db\n")
	assert.Contains(t, out, "records:    4\n")
	assert.Contains(t, out, "protein:    true\n")
	assert.Contains(t, out, "lookup:     scan\n")
	assert.Contains(t, out, "digest:     sha256:")
}

func TestRun_Get(t *testing.T) {
	t.Parallel()

	stem := sampleStem(t)
	sample := testutil.SampleDatabase()

	code, out, _ := runCLI(t, "-db", stem, "-eager", "get", "-width", "0", "lcl|hba", "lcl|ubq1 lcl|ubq_alias")
	require.Equal(t, exitOK, code)
	assert.Equal(t,
		">sp|P69905|HBA_HUMAN Hemoglobin subunit alpha lcl|hba\n"+sample.Records[0].Residues+"\n"+
			">lcl|ubq1 lcl|ubq_alias\n"+sample.Records[1].Residues+"\n",
		out)

	code, out, errOut := runCLI(t, "-db", stem, "-eager", "get", "lcl|missing", "lcl|hba")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "identifier not found")
	assert.Contains(t, out, ">sp|P69905|HBA_HUMAN")
}

func TestRun_Synonyms(t *testing.T) {
	t.Parallel()

	stem := sampleStem(t)

	code, out, _ := runCLI(t, "-db", stem, "-eager", "-split", "space", "synonyms", "lcl|ubq_alias")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "lcl|ubq1\nlcl|ubq_alias\n", out)

	code, _, errOut := runCLI(t, "-db", stem, "synonyms", "lcl|nothing")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "not found")
}

func TestRun_DumpZstd(t *testing.T) {
	t.Parallel()

	stem := sampleStem(t)
	path := filepath.Join(t.TempDir(), "out.fa.zst")

	code, _, _ := runCLI(t, "-db", stem, "dump", "-o", path, "-compress", "zstd")
	require.Equal(t, exitOK, code)

	compressed, err := os.ReadFile(path)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)

	code, want, _ := runCLI(t, "-db", stem, "dump")
	require.Equal(t, exitOK, code)
	assert.Equal(t, want, string(plain))
	assert.Equal(t, 4, strings.Count(want, ">"))
}

func TestRun_ConfigFile(t *testing.T) {
	t.Parallel()

	stem := sampleStem(t)
	cfgPath := filepath.Join(t.TempDir(), "blastdb.yaml")
	yml := "db: " + stem + "\nlookup: eager\nsplit: space\nfasta:\n  width: 10\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yml), 0o600))

	code, out, _ := runCLI(t, "-config", cfgPath, "get", "lcl|ubq_alias")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Greater(t, len(lines), 2)
	assert.Equal(t, ">lcl|ubq1 lcl|ubq_alias", lines[0])
	assert.Len(t, lines[1], 10)

	code, out, _ = runCLI(t, "-config", cfgPath, "-eager=false", "info")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "lookup:     scan\n", "flags override the config file")
}

func TestRun_Remote(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, "sample", testutil.SampleDatabase())
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	args := []string{"-url", srv.URL + "/sample", "-cache-dir", cacheDir, "-eager", "get", "gi|12345|ref|NP_000001.1|"}

	code, out, errOut := runCLI(t, args...)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "\nMBZUOJX*\n")

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "blocks are cached on disk")

	code, again, _ := runCLI(t, args...)
	require.Equal(t, exitOK, code)
	assert.Equal(t, out, again)
}

func TestRun_RemoteMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	code, _, errOut := runCLI(t, "-url", srv.URL+"/absent", "info")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "absent.pin")
}

func TestCloseDB_ReportsCloseError(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("disk went away")
	for _, code := range []int{exitOK, exitError} {
		var errOut bytes.Buffer
		e := &env{stderr: &errOut}

		got := e.closeDB(code, func() error { return closeErr })
		assert.Equal(t, exitError, got)
		assert.Contains(t, errOut.String(), "close database: disk went away")
	}

	var errOut bytes.Buffer
	e := &env{stderr: &errOut}
	assert.Equal(t, exitError, e.closeDB(exitError, func() error { return nil }))
	assert.Equal(t, exitOK, e.closeDB(exitOK, func() error { return nil }))
	assert.Empty(t, errOut.String())
}
