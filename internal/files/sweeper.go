// Background expiry of uploaded files.

package files

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/metrics"
	"Dropzone/internal/storage"
	"Dropzone/pkg/log"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SweeperState is where the sweeper loop currently is.
type SweeperState int32

const (
	Sleeping SweeperState = iota
	Sweeping
	Stopped
)

func (s SweeperState) String() string {
	switch s {
	case Sleeping:
		return "sleeping"
	case Sweeping:
		return "sweeping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("SweeperState(%d)", int32(s))
}

// ExpiryStore is the part of the record store the sweeper works with.
type ExpiryStore interface {
	ListExpired(ctx context.Context, logger log.Logger, now time.Time) ([]entity.ExpiredFile, error)
	DeleteFile(ctx context.Context, logger log.Logger, id string) error
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	// Pause between two sweeps.
	Interval time.Duration
	// Sweep once right away instead of sleeping first.
	SweepOnStart bool
}

// Sweeper periodically removes expired files, storage first and record second,
// and tells subscribers about it with a single cleanup event per sweep.
type Sweeper struct {
	store   ExpiryStore
	storage storage.Storage
	bus     Broadcaster
	metrics *metrics.Metrics
	logger  log.Logger
	opts    SweeperOptions
	now     func() time.Time

	state atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(store ExpiryStore, st storage.Storage, bus Broadcaster, m *metrics.Metrics, opts SweeperOptions, logger log.Logger) *Sweeper {
	s := &Sweeper{
		store:   store,
		storage: st,
		bus:     bus,
		metrics: m,
		logger:  logger.With("service", "sweeper"),
		opts:    opts,
		now:     time.Now,
	}
	s.state.Store(int32(Stopped))
	return s
}

// State returns the current state of the sweeper loop.
func (s *Sweeper) State() SweeperState {
	return SweeperState(s.state.Load())
}

func (s *Sweeper) setState(state SweeperState) {
	s.state.Store(int32(state))
}

// Start launches the sweeper loop in a goroutine. The loop ends when ctx is
// done or Stop is called. Starting a running sweeper does nothing, a stopped
// sweeper can't be restarted.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.setState(Sleeping)
	s.logger.Info().Msgf("Launching sweeper, interval %s", s.opts.Interval)
	go s.run(ctx, s.done)
}

// Stop cancels the loop and waits for it to reach Stopped. A sweep in
// progress is completed first. Waiting is bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		s.logger.Info().Msg("Successfully stopped sweeper")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sweeper to stop: %w", ctx.Err())
	}
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.setState(Stopped)

	if s.opts.SweepOnStart {
		if ctx.Err() != nil {
			return
		}
		s.sweepOnce(ctx)
	}

	timer := time.NewTimer(s.opts.Interval)
	defer timer.Stop()
	for {
		s.setState(Sleeping)
		select {
		case <-ctx.Done():
			// Cancellation is a regular way out, not an error
			return
		case <-timer.C:
		}
		s.sweepOnce(ctx)
		timer.Reset(s.opts.Interval)
	}
}

// sweepOnce runs one sweep which survives both cancellation of ctx and panics.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	s.setState(Sweeping)
	defer func() {
		if r := recover(); r != nil {
			s.metrics.SweepCompleted(0, true)
			s.logger.Error().Msgf("Recovered from panic during sweep: %v", r)
		}
	}()

	// Detached so a shutdown request lets the current sweep finish
	removed, err := s.Sweep(context.WithoutCancel(ctx))
	s.metrics.SweepCompleted(removed, err != nil)
	if err != nil {
		s.logger.Error().Err(err).Msgf("Sweep finished with errors, %d file(s) removed", removed)
	}
}

// Sweep removes every file expired at this instant and returns how many were removed.
// Files whose content couldn't be removed keep their record and are retried on the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx, s.logger, s.now())
	if err != nil {
		return 0, fmt.Errorf("listing expired files: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}
	s.logger.Info().Msgf("Found %d expired file(s)", len(expired))

	var errs []error
	removed := 0
	for _, file := range expired {
		if file.Path != "" {
			if err := s.storage.Remove(ctx, file.Path); err != nil {
				if !errors.Is(err, storage.ErrNotExist) {
					errs = append(errs, fmt.Errorf("removing content of %s: %w", file.ID, err))
					continue
				}
				s.logger.Warn().Msgf("Content of expired file %s was already gone", file.ID)
			}
		}
		if err := s.store.DeleteFile(ctx, s.logger, file.ID); err != nil {
			errs = append(errs, fmt.Errorf("deleting record of %s: %w", file.ID, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Msgf("Removed %d expired file(s)", removed)
		s.bus.Broadcast(entity.FilesEvent(entity.FilesActionCleanup))
	}
	return removed, errors.Join(errs...)
}
