package disk

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type blockFile struct {
	path    string
	size    int64
	modTime time.Time
}

// listBlocks returns every block file under root. A missing root is empty.
func listBlocks(root string) ([]blockFile, error) {
	var blocks []blockFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(path, blockFileSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		blocks = append(blocks, blockFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return blocks, err
}

func dirSize(root string) (int64, error) {
	blocks, err := listBlocks(root)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range blocks {
		total += b.size
	}
	return total, nil
}

// pruneDir removes the least recently written blocks until at most
// targetBytes remain.
func pruneDir(root string, targetBytes int64) (freed, remaining int64, err error) {
	blocks, err := listBlocks(root)
	if err != nil {
		return 0, 0, err
	}
	for _, b := range blocks {
		remaining += b.size
	}
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	slices.SortFunc(blocks, func(a, b blockFile) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})
	for _, b := range blocks {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(b.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, remaining, err
		}
		remaining -= b.size
		freed += b.size
	}
	return freed, remaining, nil
}
