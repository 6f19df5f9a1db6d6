package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meigma/blastdb"
	dbhttp "github.com/meigma/blastdb/http"
	"github.com/meigma/blastdb/testutil"
)

func newHTTPSources(cfg config, files testutil.Files) (sources, func(), error) {
	if cfg.dataURL == "" {
		return sources{}, nil, errors.New("data-url is required for HTTP sources")
	}

	client := newHTTPClient(cfg)
	stem := cfg.dataURL
	var cleanup func()
	if cfg.dataURL == "local" {
		streams := map[string][]byte{
			"/db" + blastdb.IndexExt:    files.Index,
			"/db" + blastdb.HeaderExt:   files.Headers,
			"/db" + blastdb.SequenceExt: files.Sequences,
		}
		server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			data, ok := streams[r.URL.Path]
			if !ok {
				nethttp.NotFound(w, r)
				return
			}
			nethttp.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(data))
		}))
		stem = server.URL + "/db"
		cleanup = server.Close
	}

	ctx := context.Background()
	urls := make([]string, 3)
	urls[0], urls[1], urls[2] = dbhttp.StemURLs(stem)
	opened := make([]blastdb.ByteSource, 0, len(urls))
	for _, u := range urls {
		src, err := dbhttp.NewSource(ctx, u, dbhttp.WithClient(client))
		if err != nil {
			if cleanup != nil {
				cleanup()
			}
			return sources{}, nil, err
		}
		opened = append(opened, src)
	}
	return sources{index: opened[0], headers: opened[1], sequences: opened[2]}, cleanup, nil
}

func newHTTPClient(cfg config) *nethttp.Client {
	var transport nethttp.RoundTripper = nethttp.DefaultTransport.(*nethttp.Transport).Clone()
	if cfg.dataHTTPLatency > 0 || cfg.dataHTTPBPS > 0 {
		transport = &slowTransport{
			next:    transport,
			latency: cfg.dataHTTPLatency,
			link:    newLink(cfg.dataHTTPBPS),
		}
	}
	return &nethttp.Client{Transport: transport}
}

// slowTransport delays every request and meters response bodies through a
// shared link, so concurrent range reads split the configured bandwidth.
type slowTransport struct {
	next    nethttp.RoundTripper
	latency time.Duration
	link    *link
}

func (t *slowTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	if t.latency > 0 {
		select {
		case <-time.After(t.latency):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil || t.link == nil || resp.Body == nil {
		return resp, err
	}
	resp.Body = &meteredBody{ReadCloser: resp.Body, link: t.link}
	return resp, nil
}

// link is a bandwidth budget shared by every response body.
type link struct {
	mu   sync.Mutex
	bps  int64
	next time.Time
}

// newLink returns nil for an unlimited link.
func newLink(bps int64) *link {
	if bps <= 0 {
		return nil
	}
	return &link{bps: bps}
}

// reserve books n bytes on the link and returns how long to wait for them.
func (l *link) reserve(n int) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.next.Before(now) {
		l.next = now
	}
	l.next = l.next.Add(time.Duration(int64(n) * int64(time.Second) / l.bps))
	return l.next.Sub(now)
}

type meteredBody struct {
	io.ReadCloser
	link *link
}

func (b *meteredBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		time.Sleep(b.link.reserve(n))
	}
	return n, err
}

// byteUnits maps rate suffixes to multipliers. Longer suffixes come first.
var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"gb", 1 << 30}, {"mb", 1 << 20}, {"kb", 1 << 10},
	{"g", 1 << 30}, {"m", 1 << 20}, {"k", 1 << 10},
	{"b", 1},
}

// parseBytesPerSecond parses rates such as "512", "4k/s" or "10MBps".
func parseBytesPerSecond(value string) (int64, error) {
	text := strings.ToLower(strings.TrimSpace(value))
	for _, rate := range []string{"/s", "ps"} {
		text = strings.TrimSuffix(text, rate)
	}
	mult := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(text, u.suffix) {
			text, mult = strings.TrimSuffix(text, u.suffix), u.mult
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid bytes-per-second %q", value)
	}
	return n * mult, nil
}
