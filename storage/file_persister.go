// Package storage writes operation artifacts and manages temporary
// directories used by engine processes.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FilePersister persists files. It abstracts away the where and how of
// writing an artifact, like a screenshot, to its destination.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// LocalFilePersister persists files to a filesystem, the OS one by default.
type LocalFilePersister struct {
	Fs afero.Fs
}

// NewLocalFilePersister returns a persister writing to fs.
// A nil fs means the OS filesystem.
func NewLocalFilePersister(fs afero.Fs) *LocalFilePersister {
	return &LocalFilePersister{Fs: fs}
}

// Persist writes the contents of data to path, creating missing parent
// directories and truncating an existing file.
func (l *LocalFilePersister) Persist(ctx context.Context, path string, data io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("persisting %q: %w", path, err)
	}

	fs := l.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cp := filepath.Clean(path)

	dir := filepath.Dir(cp)
	if err = fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating a local directory %q: %w", dir, err)
	}

	f, err := fs.OpenFile(cp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating a local file %q: %w", cp, err)
	}
	defer func() {
		// Only return the close error if there isn't already an existing error.
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing the local file %q: %w", cp, cerr)
		}
	}()

	if _, err = io.Copy(f, data); err != nil {
		return fmt.Errorf("writing the local file %q: %w", cp, err)
	}

	return nil
}
