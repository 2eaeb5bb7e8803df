// Backing storage of uploaded file contents in Dropzone.

package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned when the object behind a path is already gone.
var ErrNotExist = errors.New("storage: object does not exist")

// Storage keeps the bytes of uploaded files. Paths are opaque to callers,
// they are whatever Save returned and get persisted in the file record.
type Storage interface {
	// Save writes r and returns the path of the new object with the number of bytes written.
	Save(ctx context.Context, id, name string, r io.Reader) (string, int64, error)
	// Open returns a reader over the object at path.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove deletes the object at path, wrapping ErrNotExist if there was nothing to delete.
	Remove(ctx context.Context, path string) error
}
