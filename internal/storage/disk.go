package storage

import (
	"Dropzone/pkg/cleanup"
	"Dropzone/pkg/log"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Disk stores uploads as plain files under root.
type Disk struct {
	root   string
	logger log.Logger
}

// NewDisk creates the upload directory if it doesn't exist yet.
func NewDisk(root string, logger log.Logger) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory %s: %w", root, err)
	}
	return &Disk{root: root, logger: logger}, nil
}

// Root returns the upload directory.
func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) Save(ctx context.Context, id, name string, r io.Reader) (string, int64, error) {
	path := filepath.Join(d.root, id+"_"+safeName(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", size, err
	}
	return path, size, nil
}

func (d *Disk) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return f, err
}

func (d *Disk) Remove(ctx context.Context, path string) error {
	err := cleanup.DeleteContentFiles(path, d.logger)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return err
}

// safeName keeps the base name of an uploaded file and drops anything that could escape root.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
