// Package http reads database streams from web servers with range requests.
package http //nolint:revive // mirrors net/http on purpose; imported under an alias

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

var (
	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("http: range requests not supported")

	// ErrChanged is returned when the remote content no longer matches the
	// validators captured at NewSource.
	ErrChanged = errors.New("http: remote content changed")
)

// Source is a random-access stream over HTTP range requests.
// It is safe for concurrent use.
type Source struct {
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	size         int64
	etag         string
	lastModified string
	sourceID     string
	pinned       bool
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		for key, values := range headers {
			for _, v := range values {
				s.header().Add(key, v)
			}
		}
	}
}

// WithHeader sets one header on every request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		s.header().Set(key, value)
	}
}

// WithSourceID overrides the identifier used as a cache key.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithPinnedContent sends the ETag or Last-Modified seen at NewSource with
// every read, so a database replaced on the server fails with ErrChanged
// instead of mixing old offsets with new bytes.
func WithPinnedContent() Option {
	return func(s *Source) {
		s.pinned = true
	}
}

func (s *Source) header() nethttp.Header {
	if s.headers == nil {
		s.headers = make(nethttp.Header)
	}
	return s.headers
}

// NewSource probes url for its size and validators.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if err := s.probe(ctx); err != nil {
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	return s, nil
}

// StemURLs returns the index, header and sequence URLs of a database whose
// files share the URL prefix stem.
func StemURLs(stem string) (index, headers, sequences string) {
	return stem + ".pin", stem + ".phr", stem + ".psq"
}

// Size returns the content length.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a digest of the URL and the content validators.
func (s *Source) SourceID() string {
	return s.sourceID
}

// URL returns the source URL.
func (s *Source) URL() string {
	return s.url
}

func (s *Source) defaultSourceID() string {
	key := fmt.Sprintf("%s\x00%d\x00%s\x00%s", s.url, s.size, s.etag, s.lastModified)
	return digest.FromString(key).String()
}

// ReadAt implements io.ReaderAt with one range request per call.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.size-off)

	body, err := s.get(context.Background(), off, want)
	if err != nil {
		return 0, err
	}
	defer drain(body)

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, fmt.Errorf("read range %d-%d: %w", off, off+want-1, err)
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange returns the bytes [off, off+length) as a stream. The caller
// must close it.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	if length < 0 || off < 0 {
		return nil, fmt.Errorf("read range %d+%d: negative bound", off, length)
	}
	if length == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if off >= s.size {
		return nil, io.EOF
	}
	length = min(length, s.size-off)
	body, err := s.get(context.Background(), off, length)
	if err != nil {
		return nil, err
	}
	return &limitedBody{Reader: io.LimitReader(body, length), body: body}, nil
}

// get issues a range request and returns the body of a 206 response.
func (s *Source) get(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+length-1))
	if s.pinned {
		if s.etag != "" {
			req.Header.Set("If-Match", s.etag)
		} else if s.lastModified != "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return resp.Body, nil
	case nethttp.StatusOK:
		drain(resp.Body)
		return nil, ErrRangeUnsupported
	case nethttp.StatusPreconditionFailed:
		drain(resp.Body)
		return nil, ErrChanged
	case nethttp.StatusRequestedRangeNotSatisfiable:
		drain(resp.Body)
		return nil, io.EOF
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("range request %d-%d: %s", off, off+length-1, resp.Status)
	}
}

// probe learns the size from a one-byte range request, which also proves
// range support. A HEAD response, when available, must agree.
func (s *Source) probe(ctx context.Context) error {
	req, err := s.newRequest(ctx, nethttp.MethodGet)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		size, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return err
		}
		s.size = size
	case nethttp.StatusRequestedRangeNotSatisfiable:
		// Some servers answer 416 for a zero-length resource.
		size, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil || size != 0 {
			return fmt.Errorf("range probe: %s", resp.Status)
		}
		s.size = 0
	case nethttp.StatusOK:
		// Others ignore the range and send the empty body.
		if resp.ContentLength != 0 {
			return ErrRangeUnsupported
		}
		s.size = 0
	default:
		return fmt.Errorf("range probe: %s", resp.Status)
	}
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")

	head, err := s.newRequest(ctx, nethttp.MethodHead)
	if err != nil {
		return err
	}
	hresp, err := s.client.Do(head)
	if err != nil {
		return nil //nolint:nilerr // HEAD is only a consistency check
	}
	defer drain(hresp.Body)
	if hresp.StatusCode == nethttp.StatusOK && hresp.ContentLength >= 0 && hresp.ContentLength != s.size {
		return fmt.Errorf("content size mismatch: head=%d range=%d", hresp.ContentLength, s.size)
	}
	return nil
}

func (s *Source) newRequest(ctx context.Context, method string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

// limitedBody drains the response on close so the connection is reused.
type limitedBody struct {
	io.Reader
	body io.ReadCloser
}

func (b *limitedBody) Close() error {
	_, _ = io.Copy(io.Discard, b.body) //nolint:errcheck // best-effort drain
	return b.body.Close()
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body) //nolint:errcheck // best-effort drain
	_ = body.Close()
}

// parseContentRange returns the complete length from a Content-Range value
// such as "bytes 0-0/1234" or "bytes */1234".
func parseContentRange(value string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
