// Service layer of the internal package clipboard.

package clipboard

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/errors"
	"Dropzone/pkg/log"
	"context"
	"time"

	"github.com/asaskevich/govalidator"
)

// Broadcaster is the part of the event bus producers need.
type Broadcaster interface {
	Broadcast(ev entity.Event)
}

// Service layer of internal package clipboard which encapsulates reading and sharing the clipboard.
type Service interface {
	Get(ctx context.Context) (entity.Clipboard, error)
	// Update persists the new content, then tells every subscriber about it.
	Update(ctx context.Context, req entity.ClipboardUpdate) (entity.Clipboard, error)
}

type service struct {
	clipRepo Repository
	bus      Broadcaster
	logger   log.Logger
	now      func() time.Time
}

// Helps to access the service layer interface and call methods. Service object is passed from main.
func NewService(clipRepo Repository, bus Broadcaster, logger log.Logger) Service {
	return service{clipRepo: clipRepo, bus: bus, logger: logger, now: time.Now}
}

func (s service) Get(ctx context.Context) (entity.Clipboard, error) {
	return s.clipRepo.GetClipboard(ctx, s.logger)
}

func (s service) Update(ctx context.Context, req entity.ClipboardUpdate) (entity.Clipboard, error) {
	if _, valerr := govalidator.ValidateStruct(req); valerr != nil {
		if errs, ok := valerr.(govalidator.Errors); ok {
			return entity.Clipboard{}, errors.GenerateValidationErrorResponse(errs.Errors())
		}
		return entity.Clipboard{}, errors.BadRequest(valerr.Error())
	}
	clip, err := s.clipRepo.UpdateClipboard(ctx, s.logger, req.Content, s.now())
	if err != nil {
		return entity.Clipboard{}, err
	}
	s.bus.Broadcast(entity.ClipboardEvent(clip.Content))
	return clip, nil
}
