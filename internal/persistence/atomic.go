package persistence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const ioBufferSize = 256 * 1024

// scratch is a private temporary directory. Close removes it and everything
// still inside, so deferring Close covers every exit path.
type scratch struct {
	dir string
}

func newScratch(root string) (*scratch, error) {
	dir, err := os.MkdirTemp(root, "medialens-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &scratch{dir: dir}, nil
}

func (s *scratch) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *scratch) Close() error {
	if s == nil || s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}

// writeFile writes path through a buffered writer and fsyncs it.
func writeFile(path string, writeFunc func(io.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	buf := bufio.NewWriterSize(f, ioBufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// replaceFile moves src over dst. A plain rename is tried first; when that
// fails (for example across filesystems) src is copied to a temp file next to
// dst which is then renamed, so dst is never observed half written.
func replaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	_ = tmp.Chmod(0644)

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := io.Copy(tmp, bufio.NewReaderSize(in, ioBufferSize)); err != nil {
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// syncDir makes renames inside dir durable. Best effort.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
