package cleanup

import (
	"Dropzone/pkg/log"
	"errors"
	"io/fs"
	"os"
)

// Sidecar files written next to an uploaded content file, tusd keeps its upload state in .info.
var sidecarExtensions = []string{".info"}

// Helper method to delete a content file along with its sidecars.
// The returned error is the one of the content file itself, a missing one
// comes back as fs.ErrNotExist so callers can decide to tolerate it.
func DeleteContentFiles(filepath string, logger log.Logger) error {
	if len(filepath) == 0 {
		return fs.ErrNotExist
	}
	oserr := os.Remove(filepath)
	for _, ext := range sidecarExtensions {
		err := os.Remove(filepath + ext)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error().Err(err).Msgf("Error occured during deleting content file - %s", filepath+ext)
		}
	}
	return oserr
}
