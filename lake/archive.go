package lake

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Seal packs every regular file in spoolDir into a gzip-compressed tar at
// tarPath and removes the spooled files on success. The archive is written
// to a temp file and renamed into place; an existing archive is never
// overwritten. Returns the number of files archived.
func Seal(spoolDir, tarPath string) (int, error) {
	if _, err := os.Stat(tarPath); err == nil {
		return 0, fmt.Errorf("archive %s already exists", tarPath)
	}
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return 0, nil
	}
	sort.Strings(names)

	tmp, err := os.CreateTemp(filepath.Dir(tarPath), ".archive-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		if err := addFile(tw, spoolDir, name); err != nil {
			tw.Close()
			gz.Close()
			tmp.Close()
			return 0, fmt.Errorf("archive %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		gz.Close()
		tmp.Close()
		return 0, err
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), tarPath); err != nil {
		return 0, err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(spoolDir, name)); err != nil {
			return 0, fmt.Errorf("clear spool: %w", err)
		}
	}
	return len(names), nil
}

func addFile(tw *tar.Writer, dir, name string) error {
	path := filepath.Join(dir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    fi.Size(),
		ModTime: fi.ModTime().UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Walk iterates over the regular files in a tar or tar.gz archive without
// extracting to disk. fn receives each entry name and content; returning
// an error aborts the walk.
func Walk(tarPath string, fn func(name string, data []byte) error) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(tarPath, ".gz") || strings.HasSuffix(tarPath, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open %s: %w", tarPath, err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		if err := fn(hdr.Name, data); err != nil {
			return err
		}
	}
}

// ListArchives returns the archive files under dir matching *.tar and
// *.tar.gz, sorted by name. A missing directory yields fs.ErrNotExist.
func ListArchives(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, dir)
	}
	var out []string
	for _, pat := range []string{"*.tar", "*.tar.gz", "*.tgz"} {
		m, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, err
		}
		out = append(out, m...)
	}
	sort.Strings(out)
	return out, nil
}

// WindowStart truncates t to the start of the archive window it belongs to.
func WindowStart(t time.Time, window time.Duration) time.Time {
	return t.UTC().Truncate(window)
}
