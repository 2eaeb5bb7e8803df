// Clipboard repository encapsulates the data access logic (interactions with the DB) related to the shared clipboard in Dropzone.

package clipboard

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/errors"
	"Dropzone/pkg/db"
	"Dropzone/pkg/log"
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Hash holding the one and only clipboard record
const clipboardKey = "clipboard"

type Repository interface {
	// InitClipboard creates the empty clipboard record unless one exists already.
	InitClipboard(ctx context.Context, logger log.Logger) error
	GetClipboard(ctx context.Context, logger log.Logger) (entity.Clipboard, error)
	// UpdateClipboard overwrites the content and stamps the update time.
	UpdateClipboard(ctx context.Context, logger log.Logger, content string, at time.Time) (entity.Clipboard, error)
}

// repository struct of clipboard Repository.
// Object of this will be passed around from main to internal.
type repository struct {
	db *db.RedisDB
}

// Returns a new instance of clipboard repository for other packages to access its interface.
func NewRepository(dbwrp *db.RedisDB) Repository {
	return repository{db: dbwrp}
}

func (r repository) InitClipboard(ctx context.Context, logger log.Logger) error {
	_, dberr := r.db.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, clipboardKey, "content", "")
		pipe.HSetNX(ctx, clipboardKey, "updated_at", time.Now().UnixMilli())
		return nil
	})
	if dberr != nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured in InitClipboard transaction")
		return errors.InternalServerError("")
	}
	return nil
}

func (r repository) GetClipboard(ctx context.Context, logger log.Logger) (entity.Clipboard, error) {
	clip := entity.Clipboard{}
	cmd := r.db.Client().HGetAll(ctx, clipboardKey)
	if dberr := cmd.Err(); dberr != nil && dberr != redis.Nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.HGetAll() in clipboard.GetClipboard")
		return clip, errors.InternalServerError("")
	}
	// A missing record reads as the empty clipboard
	if dberr := cmd.Scan(&clip); dberr != nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during scanning clipboard record in clipboard.GetClipboard")
		return clip, errors.InternalServerError("")
	}
	return clip, nil
}

func (r repository) UpdateClipboard(ctx context.Context, logger log.Logger, content string, at time.Time) (entity.Clipboard, error) {
	clip := entity.Clipboard{Content: content, UpdatedAt: at.UnixMilli()}
	dberr := r.db.Client().HSet(ctx, clipboardKey, map[string]interface{}{
		"content":    clip.Content,
		"updated_at": clip.UpdatedAt,
	}).Err()
	if dberr != nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.HSet() in clipboard.UpdateClipboard")
		return entity.Clipboard{}, errors.InternalServerError("")
	}
	return clip, nil
}
