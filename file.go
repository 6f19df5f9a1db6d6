package blastdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File extensions of the three protein database streams.
const (
	IndexExt    = ".pin"
	HeaderExt   = ".phr"
	SequenceExt = ".psq"
)

// openFile is replaced in tests to observe partially opened databases.
var openFile = os.Open

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is cached at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	path, err := filepath.Abs(f.Name())
	if err != nil {
		path = f.Name()
	}
	return &fileSource{
		file:     f,
		size:     info.Size(),
		sourceID: fmt.Sprintf("file:%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()),
	}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	n, err := fs.file.ReadAt(p, off)
	if errors.Is(err, os.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

// Size returns the size of the file when it was opened.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// SourceID identifies the file by path, size and modification time.
func (fs *fileSource) SourceID() string {
	return fs.sourceID
}

// DBFile is a DB read from local files. Close must be called to release
// the file handles.
//
//nolint:revive // DBFile reads better than File at call sites
type DBFile struct {
	*DB

	mu     sync.Mutex
	files  []*os.File
	closed bool
}

// Open opens the database whose files are stem.pin, stem.phr and stem.psq.
//
// If any file cannot be opened, or the index is malformed, every file
// already opened is closed before Open returns.
func Open(stem string, opts ...Option) (*DBFile, error) {
	var files []*os.File
	sources := make([]ByteSource, 0, 3)
	fail := func(err error) (*DBFile, error) {
		for _, f := range files {
			f.Close()
		}
		return nil, err
	}

	for _, ext := range []string{IndexExt, HeaderExt, SequenceExt} {
		f, err := openFile(stem + ext) //nolint:gosec // caller chooses the database path
		if err != nil {
			return fail(fmt.Errorf("open database %s: %w", stem, err))
		}
		files = append(files, f)
		src, err := newFileSource(f)
		if err != nil {
			return fail(err)
		}
		sources = append(sources, src)
	}

	db, err := New(sources[0], sources[1], sources[2], opts...)
	if err != nil {
		return fail(fmt.Errorf("open database %s: %w", stem, err))
	}
	return &DBFile{DB: db, files: files}, nil
}

// Close closes the three files. Later calls return nil.
func (f *DBFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	for _, file := range f.files {
		if err := file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.files = nil
	return errors.Join(errs...)
}

// Interface compliance.
var (
	_ ByteSource                 = (*fileSource)(nil)
	_ interface{ Close() error } = (*DBFile)(nil)
)
