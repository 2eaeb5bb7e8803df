// Files repository encapsulates the data access logic (interactions with the DB) related to file records in Dropzone.

package files

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/errors"
	"Dropzone/pkg/db"
	"Dropzone/pkg/log"
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// Hash holding one file record, suffixed by the file ID
	fileKeyPrefix = "file:"
	// Sorted set of file IDs scored by expiry time
	filesByExpiryKey = "files:expiry"
	// Sorted set of file IDs scored by upload time
	filesByUploadKey = "files:index"
)

type Repository interface {
	// InsertFile saves a new file record.
	InsertFile(ctx context.Context, logger log.Logger, file entity.File) error
	// GetFile returns the file record with id, errors.NotFound if there is none.
	GetFile(ctx context.Context, logger log.Logger, id string) (entity.File, error)
	// ListFiles returns every file record, newest upload first.
	ListFiles(ctx context.Context, logger log.Logger) ([]entity.File, error)
	// ListExpired returns the records whose expiry time is strictly before now.
	ListExpired(ctx context.Context, logger log.Logger, now time.Time) ([]entity.ExpiredFile, error)
	// DeleteFile removes the record with id. Deleting a missing record is not an error.
	DeleteFile(ctx context.Context, logger log.Logger, id string) error
}

// repository struct of files Repository.
// Object of this will be passed around from main to internal.
// Helps to access the repository layer interface and call methods.
type repository struct {
	db *db.RedisDB
}

// Returns a new instance of files repository for other packages to access its interface.
func NewRepository(dbwrp *db.RedisDB) Repository {
	return repository{db: dbwrp}
}

func fileKey(id string) string {
	return fileKeyPrefix + id
}

func (r repository) InsertFile(ctx context.Context, logger log.Logger, file entity.File) error {
	_, dberr := r.db.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, fileKey(file.ID), map[string]interface{}{
			"id":           file.ID,
			"name":         file.Name,
			"path":         file.Path,
			"size":         file.Size,
			"content_type": file.ContentType,
			"uploaded_at":  file.UploadedAt,
			"expires_at":   file.ExpiresAt,
		})
		pipe.ZAdd(ctx, filesByExpiryKey, &redis.Z{Score: float64(file.ExpiresAt), Member: file.ID})
		pipe.ZAdd(ctx, filesByUploadKey, &redis.Z{Score: float64(file.UploadedAt), Member: file.ID})
		return nil
	})
	if dberr != nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured in InsertFile transaction")
		return errors.InternalServerError("")
	}
	return nil
}

func (r repository) GetFile(ctx context.Context, logger log.Logger, id string) (entity.File, error) {
	file := entity.File{}
	cmd := r.db.Client().HGetAll(ctx, fileKey(id))
	values, dberr := cmd.Result()
	if dberr != nil && dberr != redis.Nil {
		// Error during interacting with DB
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.HGetAll() in files.GetFile")
		return file, errors.InternalServerError("")
	} else if len(values) == 0 {
		return file, errors.NotFound("File not found")
	}
	if dberr := cmd.Scan(&file); dberr != nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during scanning file record in files.GetFile")
		return file, errors.InternalServerError("")
	}
	return file, nil
}

func (r repository) ListFiles(ctx context.Context, logger log.Logger) ([]entity.File, error) {
	ids, dberr := r.db.Client().ZRevRange(ctx, filesByUploadKey, 0, -1).Result()
	if dberr != nil && dberr != redis.Nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.ZRevRange() in files.ListFiles")
		return nil, errors.InternalServerError("")
	}
	files := []entity.File{}
	if len(ids) == 0 {
		return files, nil
	}
	cmds, dberr := r.db.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGetAll(ctx, fileKey(id))
		}
		return nil
	})
	if dberr != nil && dberr != redis.Nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.HGetAll() in files.ListFiles")
		return nil, errors.InternalServerError("")
	}
	for _, cmd := range cmds {
		hcmd, ok := cmd.(*redis.StringStringMapCmd)
		if !ok || len(hcmd.Val()) == 0 {
			// Index entry without a record, the record got deleted in between
			continue
		}
		var file entity.File
		if err := hcmd.Scan(&file); err != nil {
			logger.WithCtx(ctx).Error().Err(err).Msg("Error occured during scanning file record in files.ListFiles")
			return nil, errors.InternalServerError("")
		}
		files = append(files, file)
	}
	return files, nil
}

func (r repository) ListExpired(ctx context.Context, logger log.Logger, now time.Time) ([]entity.ExpiredFile, error) {
	ids, dberr := r.db.Client().ZRangeByScore(ctx, filesByExpiryKey, &redis.ZRangeBy{
		Min: "-inf",
		// Exclusive bound, a record expiring exactly now is still alive
		Max: "(" + strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if dberr != nil && dberr != redis.Nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.ZRangeByScore() in files.ListExpired")
		return nil, errors.InternalServerError("")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cmds, dberr := r.db.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGet(ctx, fileKey(id), "path")
		}
		return nil
	})
	if dberr != nil && dberr != redis.Nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured during execution of redis.HGet() in files.ListExpired")
		return nil, errors.InternalServerError("")
	}
	expired := make([]entity.ExpiredFile, 0, len(ids))
	for i, cmd := range cmds {
		// A missing hash leaves Path empty, the index entry still has to go
		path, err := cmd.(*redis.StringCmd).Result()
		if err != nil && err != redis.Nil {
			logger.WithCtx(ctx).Error().Err(err).Msg("Error occured during reading file path in files.ListExpired")
			return nil, errors.InternalServerError("")
		}
		expired = append(expired, entity.ExpiredFile{ID: ids[i], Path: path})
	}
	return expired, nil
}

func (r repository) DeleteFile(ctx context.Context, logger log.Logger, id string) error {
	_, dberr := r.db.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fileKey(id))
		pipe.ZRem(ctx, filesByExpiryKey, id)
		pipe.ZRem(ctx, filesByUploadKey, id)
		return nil
	})
	if dberr != nil {
		logger.WithCtx(ctx).Error().Err(dberr).Msg("Error occured in DeleteFile transaction")
		return errors.InternalServerError("")
	}
	return nil
}
