package cleanup

import (
	"Dropzone/pkg/log"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteContentFiles(t *testing.T) {
	logger := log.NewWithWriter(io.Discard, "test")
	dir := t.TempDir()
	path := filepath.Join(dir, "upload")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))
	require.NoError(t, os.WriteFile(path+".info", []byte("{}"), 0o600))

	assert.NoError(t, DeleteContentFiles(path, logger))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".info")

	// Second time round nothing is left
	assert.ErrorIs(t, DeleteContentFiles(path, logger), fs.ErrNotExist)
	assert.ErrorIs(t, DeleteContentFiles("", logger), fs.ErrNotExist)
}
