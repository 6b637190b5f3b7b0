package download

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage persists downloaded bodies.
type Storage interface {
	// CreateOrTruncate opens path for writing from offset zero.
	CreateOrTruncate(path string) (io.WriteCloser, error)
}

// Stater is implemented by storages that can tell whether a path already
// exists. WithSkipExisting requires it.
type Stater interface {
	Exists(path string) (bool, error)
}

// Syncer is implemented by handles that can flush to stable storage.
type Syncer interface {
	Sync() error
}

// Disk is the default Storage backed by the local filesystem.
type Disk struct {
	// Perm is the mode of created files. Zero means 0o644.
	Perm fs.FileMode
	// MkdirAll creates missing parent directories.
	MkdirAll bool
}

func (d Disk) CreateOrTruncate(path string) (io.WriteCloser, error) {
	perm := d.Perm
	if perm == 0 {
		perm = 0o644
	}

	if d.MkdirAll {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

func (Disk) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
