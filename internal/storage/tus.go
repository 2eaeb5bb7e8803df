// External pkg tusd to handle large file upload with resumable feature and file chunking.
// Only available with the disk backend, tusd writes straight into the upload directory.

package storage

import (
	"Dropzone/internal/entity"
	"Dropzone/pkg/log"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tus/tusd/pkg/filestore"
	tusd "github.com/tus/tusd/pkg/handler"
)

const tusBasePath = "/api/upload/tus/"

var errMissingFilename = errors.New("upload metadata must contain a filename")

// Recorder turns a finished upload into a file record.
type Recorder interface {
	Record(ctx context.Context, name, path, contentType string, size int64) (entity.File, error)
}

// Returns a tusd Unrouted handler storing uploads under disk's root.
// Completed uploads are handed to recorder until ctx is done. Unfinished uploads
// untouched for staleAfter are terminated, zero disables it.
func GetTusdStorageHandler(ctx context.Context, disk *Disk, maxSize int64, staleAfter time.Duration, recorder Recorder, logger log.Logger) (*tusd.UnroutedHandler, error) {
	store := filestore.FileStore{Path: disk.Root()}
	composer := tusd.NewStoreComposer()
	store.UseIn(composer)

	handler, tusderr := tusd.NewUnroutedHandler(tusd.Config{
		BasePath:                tusBasePath,
		MaxSize:                 maxSize,
		StoreComposer:           composer,
		NotifyCompleteUploads:   true,
		RespectForwardedHeaders: true,
		PreUploadCreateCallback: func(hook tusd.HookEvent) error {
			if strings.TrimSpace(hook.Upload.MetaData["filename"]) == "" {
				// filename cannot be blank
				return tusd.NewHTTPError(errMissingFilename, http.StatusBadRequest)
			}
			return nil
		},
	})
	if tusderr != nil {
		return nil, tusderr
	}

	// Unfinished uploads are checked for staleness on every tick
	var purge <-chan time.Time
	var ticker *time.Ticker
	if staleAfter > 0 {
		ticker = time.NewTicker(staleAfter)
		purge = ticker.C
	}

	// Start a goroutine for receiving events from the handler whenever
	// an upload is completed.
	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-purge:
				n, err := purgeStaleUploads(ctx, store, staleAfter, now, logger)
				if err != nil {
					logger.Error().Err(err).Msg("Error occured while purging stale uploads")
				}
				if n > 0 {
					logger.Info().Msgf("Purged %d abandoned upload(s)", n)
				}
			case event := <-handler.CompleteUploads:
				logger.Info().Msgf("Upload %s finished", event.Upload.ID)
				path := filepath.Join(disk.Root(), event.Upload.ID)
				_, err := recorder.Record(ctx, event.Upload.MetaData["filename"], path, event.Upload.MetaData["filetype"], event.Upload.Size)
				if err != nil {
					logger.Error().Err(err).Msgf("Couldn't record upload %s, deleting its content", event.Upload.ID)
					disk.Remove(ctx, path)
				}
			}
		}
	}()

	return handler, nil
}

// purgeStaleUploads terminates unfinished uploads whose state wasn't written to for maxAge.
// Completed uploads are left alone, they have a file record and expire through the sweeper.
func purgeStaleUploads(ctx context.Context, store filestore.FileStore, maxAge time.Duration, now time.Time, logger log.Logger) (int, error) {
	entries, err := os.ReadDir(store.Path)
	if err != nil {
		return 0, fmt.Errorf("listing uploads: %w", err)
	}
	var errs []error
	purged := 0
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), ".info")
		if !ok || entry.IsDir() {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		// PATCH requests only append to the content file, its mtime is the last activity
		lastActive := stat.ModTime()
		if content, err := os.Stat(filepath.Join(store.Path, id)); err == nil && content.ModTime().After(lastActive) {
			lastActive = content.ModTime()
		}
		if now.Sub(lastActive) < maxAge {
			continue
		}
		upload, err := store.GetUpload(ctx, id)
		if err != nil {
			// Not a tus upload, regular uploads may end in .info too
			logger.Debug().Err(err).Msgf("Skipping %s while purging stale uploads", entry.Name())
			continue
		}
		info, err := upload.GetInfo(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading upload %s: %w", id, err))
			continue
		}
		if !info.SizeIsDeferred && info.Offset >= info.Size {
			continue
		}
		if err := store.AsTerminatableUpload(upload).Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("terminating upload %s: %w", id, err))
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

// Registers the tus protocol routes onto the gin server.
func APIHandlers(router *gin.Engine, handler *tusd.UnroutedHandler) {
	wrap := func(h http.HandlerFunc) gin.HandlerFunc {
		return gin.WrapH(handler.Middleware(h))
	}
	router.POST(tusBasePath, wrap(handler.PostFile))
	router.HEAD(tusBasePath+":id", wrap(handler.HeadFile))
	router.PATCH(tusBasePath+":id", wrap(handler.PatchFile))
	router.GET(tusBasePath+":id", wrap(handler.GetFile))
	router.DELETE(tusBasePath+":id", wrap(handler.DelFile))
}
