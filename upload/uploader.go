package upload

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	pathlib "path"
	"path/filepath"
	"sort"
	"time"
)

// DefaultTimeout bounds a whole upload run.
const DefaultTimeout = 2 * time.Hour

// Uploader publishes local Parquet files to an object store.
type Uploader struct {
	store   Storage
	timeout time.Duration
}

// NewUploader wraps a storage backend. A zero timeout uses DefaultTimeout.
func NewUploader(store Storage, timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Uploader{store: store, timeout: timeout}
}

// FirstParquet returns the lexically first Parquet file in dir. A missing
// directory or a directory without Parquet files is an error.
func FirstParquet(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no parquet files found in %s", dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// UploadLatest uploads the first Parquet file found in dir under the
// fixed object name, overwriting any previous upload. Exactly one file is
// uploaded per call.
func (u *Uploader) UploadLatest(ctx context.Context, dir, objectName string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	path, err := FirstParquet(dir)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	start := time.Now()
	if err := u.store.Put(ctx, objectName, f); err != nil {
		return err
	}
	log.Printf("uploaded %s as %s in %s", path, objectName, time.Since(start).Round(time.Millisecond))
	return nil
}

// UploadTree uploads every Parquet file under root, with object names
// mirroring the path relative to root under prefix. Returns the number of
// objects uploaded; a tree without Parquet files is an error.
func (u *Uploader) UploadTree(ctx context.Context, root, prefix string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	var uploaded int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".parquet" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		object := pathlib.Join(prefix, filepath.ToSlash(rel))
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		if err := u.store.Put(ctx, object, f); err != nil {
			return err
		}
		log.Printf("uploaded %s as %s", path, object)
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}
	if uploaded == 0 {
		return 0, fmt.Errorf("no parquet files found in %s", root)
	}
	return uploaded, nil
}
