// Service layer of the internal package files.

package files

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/errors"
	"Dropzone/internal/metrics"
	"Dropzone/internal/storage"
	"Dropzone/pkg/log"
	"bytes"
	"context"
	goerrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/h2non/filetype"
	"github.com/rs/xid"
)

// Number of leading bytes needed by filetype to sniff a content type.
const sniffLen = 261

// Broadcaster is the part of the event bus producers need.
type Broadcaster interface {
	Broadcast(ev entity.Event)
}

// Service layer of internal package files which encapsulates file upload, listing and removal logic of Dropzone.
type Service interface {
	// ListFiles returns every file record, newest upload first.
	ListFiles(ctx context.Context) ([]entity.File, error)
	// Upload stores the content read from r and records it.
	Upload(ctx context.Context, upload entity.FileUpload, r io.Reader) (entity.File, error)
	// Record adds a record for content already sitting in storage at path.
	Record(ctx context.Context, name, path, contentType string, size int64) (entity.File, error)
	// Open returns the record with id and a reader over its content.
	Open(ctx context.Context, id string) (entity.File, io.ReadCloser, error)
	// Delete removes the content and the record of file id ahead of its expiry.
	Delete(ctx context.Context, id string) error
}

// Settings of the files service.
type Options struct {
	// How long an upload is kept before the sweeper removes it.
	TTL time.Duration
	// Largest accepted upload in bytes.
	MaxUploadSize int64
}

// Object of this will be passed around from main to routers to API.
// Helps to access the service layer interface and call methods.
// Also helps to pass objects to be used from outer layer.
type service struct {
	filesRepo Repository
	storage   storage.Storage
	bus       Broadcaster
	metrics   *metrics.Metrics
	opts      Options
	logger    log.Logger
	now       func() time.Time
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
func NewService(filesRepo Repository, store storage.Storage, bus Broadcaster, m *metrics.Metrics, opts Options, logger log.Logger) Service {
	return service{
		filesRepo: filesRepo,
		storage:   store,
		bus:       bus,
		metrics:   m,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

func (s service) ListFiles(ctx context.Context) ([]entity.File, error) {
	return s.filesRepo.ListFiles(ctx, s.logger)
}

func (s service) Upload(ctx context.Context, upload entity.FileUpload, r io.Reader) (entity.File, error) {
	if _, valerr := govalidator.ValidateStruct(upload); valerr != nil {
		if errs, ok := valerr.(govalidator.Errors); ok {
			return entity.File{}, errors.GenerateValidationErrorResponse(errs.Errors())
		}
		return entity.File{}, errors.BadRequest(valerr.Error())
	}

	head := make([]byte, sniffLen)
	n, rerr := io.ReadFull(r, head)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		s.logger.WithCtx(ctx).Error().Err(rerr).Msg("Error occured while reading upload content")
		return entity.File{}, errors.BadRequest("Couldn't read the uploaded content")
	}
	head = head[:n]
	contentType := detectContentType(head)

	id := xid.New().String()
	// One byte over the limit is enough to know the upload is too large
	content := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.opts.MaxUploadSize+1)
	path, size, serr := s.storage.Save(ctx, id, upload.Name, content)
	if serr != nil {
		s.logger.WithCtx(ctx).Error().Err(serr).Msgf("Error occured while saving upload %s", upload.Name)
		return entity.File{}, errors.InternalServerError("")
	}
	if size > s.opts.MaxUploadSize {
		s.storage.Remove(ctx, path)
		return entity.File{}, errors.RequestEntityTooLarge("")
	}

	file, err := s.record(ctx, id, upload.Name, path, contentType, size)
	if err != nil {
		// Record failed, the content would be orphaned
		s.storage.Remove(ctx, path)
		return entity.File{}, err
	}
	return file, nil
}

func (s service) Record(ctx context.Context, name, path, contentType string, size int64) (entity.File, error) {
	return s.record(ctx, xid.New().String(), name, path, contentType, size)
}

func (s service) record(ctx context.Context, id, name, path, contentType string, size int64) (entity.File, error) {
	now := s.now()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	file := entity.File{
		ID:          id,
		Name:        name,
		Path:        path,
		Size:        size,
		ContentType: contentType,
		UploadedAt:  now.UnixMilli(),
		ExpiresAt:   now.Add(s.opts.TTL).UnixMilli(),
	}
	if err := s.filesRepo.InsertFile(ctx, s.logger, file); err != nil {
		return entity.File{}, err
	}
	s.metrics.FileUploaded()
	s.logger.WithCtx(ctx).Info().Msgf("Stored %s (%d bytes) as %s", name, size, file.ID)
	s.bus.Broadcast(entity.FilesEvent(entity.FilesActionRefresh))
	return file, nil
}

func (s service) Open(ctx context.Context, id string) (entity.File, io.ReadCloser, error) {
	file, err := s.filesRepo.GetFile(ctx, s.logger, id)
	if err != nil {
		return entity.File{}, nil, err
	}
	if file.Expired(s.now()) {
		// Sweeper hasn't caught up yet, expired content is gone for clients
		return entity.File{}, nil, errors.NotFound("File not found")
	}
	rc, err := s.storage.Open(ctx, file.Path)
	if err != nil {
		if goerrors.Is(err, storage.ErrNotExist) {
			s.logger.WithCtx(ctx).Warn().Msgf("Content of file %s is missing from storage", id)
			return entity.File{}, nil, errors.NotFound("File not found")
		}
		s.logger.WithCtx(ctx).Error().Err(err).Msgf("Error occured while opening file %s", id)
		return entity.File{}, nil, errors.InternalServerError("")
	}
	return file, rc, nil
}

func (s service) Delete(ctx context.Context, id string) error {
	file, err := s.filesRepo.GetFile(ctx, s.logger, id)
	if err != nil {
		return err
	}
	// Storage goes first, a record without content is only a dangling reference
	if err := s.storage.Remove(ctx, file.Path); err != nil && !goerrors.Is(err, storage.ErrNotExist) {
		s.logger.WithCtx(ctx).Error().Err(err).Msgf("Error occured while removing content of file %s", id)
		return errors.InternalServerError("")
	}
	if err := s.filesRepo.DeleteFile(ctx, s.logger, id); err != nil {
		return err
	}
	s.bus.Broadcast(entity.FilesEvent(entity.FilesActionRefresh))
	return nil
}

// detectContentType sniffs binary formats with filetype and falls back on net/http for text.
func detectContentType(head []byte) string {
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(head)
}
