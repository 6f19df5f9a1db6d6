//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/blastdb"
	dbhttp "github.com/meigma/blastdb/http"
	"github.com/meigma/blastdb/testutil"
)

// --- Web Server Container Setup ---

const webRoot = "/usr/share/nginx/html"

var (
	serverOnce sync.Once
	serverURL  string
	serverErr  error
)

// datasets are served by the shared container under their map key.
var datasets = map[string]testutil.Database{
	"sample": testutil.SampleDatabase(),
	"large":  largeDatabase(2500),
}

// getServer returns the base URL of the shared web server, starting the
// container if needed. The container is shared across all tests.
func getServer(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	serverOnce.Do(func() {
		serverURL, serverErr = startServerContainer(context.Background())
	})

	if serverErr != nil {
		tb.Fatalf("start web server container: %v", serverErr)
	}

	return serverURL
}

// startServerContainer starts an nginx container holding every dataset and
// returns its base URL.
func startServerContainer(ctx context.Context) (string, error) {
	var files []testcontainers.ContainerFile
	for name, d := range datasets {
		encoded, err := d.Encode()
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", name, err)
		}
		for ext, data := range map[string][]byte{
			blastdb.IndexExt:    encoded.Index,
			blastdb.HeaderExt:   encoded.Headers,
			blastdb.SequenceExt: encoded.Sequences,
		} {
			files = append(files, testcontainers.ContainerFile{
				Reader:            bytes.NewReader(data),
				ContainerFilePath: webRoot + "/db/" + name + ext,
				FileMode:          0o644,
			})
		}
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        files,
		WaitingFor:   wait.ForHTTP("/db/sample.pin").WithPort("80/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start nginx container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve nginx host: %w", err)
	}

	port, err := container.MappedPort(ctx, "80/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve nginx port: %w", err)
	}

	return fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Database Helpers ---

// stemURL returns the URL stem of a served dataset.
func stemURL(tb testing.TB, name string) string {
	tb.Helper()
	return getServer(tb) + "/db/" + name
}

// openRemote opens a served dataset over HTTP.
func openRemote(tb testing.TB, name string, srcOpts []dbhttp.Option, opts ...blastdb.Option) *blastdb.DB {
	tb.Helper()

	indexURL, headersURL, sequencesURL := dbhttp.StemURLs(stemURL(tb, name))
	ctx := context.Background()
	var srcs []*dbhttp.Source
	for _, u := range []string{indexURL, headersURL, sequencesURL} {
		src, err := dbhttp.NewSource(ctx, u, srcOpts...)
		require.NoError(tb, err, "open %s", u)
		srcs = append(srcs, src)
	}

	db, err := blastdb.New(srcs[0], srcs[1], srcs[2], opts...)
	require.NoError(tb, err, "open remote database %s", name)
	return db
}

// openLocal writes a dataset to a temp dir and opens it from disk.
func openLocal(tb testing.TB, name string, opts ...blastdb.Option) *blastdb.DB {
	tb.Helper()

	stem := testutil.WriteFiles(tb, tb.TempDir(), name, datasets[name])
	f, err := blastdb.Open(stem, opts...)
	require.NoError(tb, err, "open local database %s", filepath.Base(stem))
	tb.Cleanup(func() { _ = f.Close() })
	return f.DB
}

// --- Standard Test Fixtures ---

// largeID is the primary identifier of record i in the large dataset.
func largeID(i int) string {
	return fmt.Sprintf("ref|XP_%06d.1|", i)
}

// largeDatabase builds a database big enough that lookups span several
// header chunks and cache blocks.
func largeDatabase(records int) testutil.Database {
	d := testutil.Database{
		Title:     "integration large",
		Timestamp: "Mar 3, 2026  3:33 PM",
		Records:   make([]testutil.Record, records),
	}
	for i := range records {
		d.Records[i] = testutil.Record{
			Header: testutil.HeaderBlob(
				largeID(i),
				fmt.Sprintf("gnl|int|%d hypothetical protein %d", i, i),
				fmt.Sprintf("%s:%d", blastdb.OrdinalMarker, i),
			),
			Residues: strings.Repeat("MKV", 20+i%40),
		}
	}
	return d
}
