package storage

import (
	"fmt"
	"os"
)

// Dir manages a temporary directory, such as an engine's user data
// directory.
type Dir struct {
	Dir        string // path to the directory
	remove     bool   // whether to remove the directory on cleanup
	fsMkdirTmp func(dir, pattern string) (string, error)
	fsRemove   func(path string) error
}

// Make creates a new temporary directory in tmpDir, and stores the path to
// the directory in the Dir field. When dir is not empty, it is used as is
// and it won't be removed by Cleanup.
func (d *Dir) Make(tmpDir, dir string) error {
	if dir != "" {
		d.Dir = dir
		return nil
	}
	mkdirTemp := d.fsMkdirTmp
	if mkdirTemp == nil {
		mkdirTemp = os.MkdirTemp
	}
	var err error
	if d.Dir, err = mkdirTemp(tmpDir, "pagebatch-data-*"); err != nil {
		return fmt.Errorf("creating a temporary directory: %w", err)
	}
	d.remove = true

	return nil
}

// Cleanup removes the temporary directory if Make created it.
func (d *Dir) Cleanup() error {
	if !d.remove {
		return nil
	}
	remove := d.fsRemove
	if remove == nil {
		remove = os.RemoveAll
	}
	if err := remove(d.Dir); err != nil {
		return fmt.Errorf("removing temporary directory %q: %w", d.Dir, err)
	}
	d.remove = false

	return nil
}
