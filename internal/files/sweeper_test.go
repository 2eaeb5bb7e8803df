// Expiry sweeper tests in Dropzone.

package files

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/storage"
	"Dropzone/internal/test"
	"Dropzone/pkg/log"
	"context"
	goerrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory ExpiryStore which can block or fail on demand.
type fakeStore struct {
	mu       sync.Mutex
	files    map[string]entity.File
	listed   int
	listErrs []error
	// When set, ListExpired signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
	ctxErr  error
}

func newFakeStore(files ...entity.File) *fakeStore {
	s := &fakeStore{files: make(map[string]entity.File)}
	for _, f := range files {
		s.files[f.ID] = f
	}
	return s
}

func (s *fakeStore) ListExpired(ctx context.Context, logger log.Logger, now time.Time) ([]entity.ExpiredFile, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listed++
	s.ctxErr = ctx.Err()
	if len(s.listErrs) > 0 {
		err := s.listErrs[0]
		s.listErrs = s.listErrs[1:]
		return nil, err
	}
	var expired []entity.ExpiredFile
	for _, f := range s.files {
		if f.Expired(now) {
			expired = append(expired, entity.ExpiredFile{ID: f.ID, Path: f.Path})
		}
	}
	return expired, nil
}

func (s *fakeStore) DeleteFile(ctx context.Context, logger log.Logger, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	return nil
}

func (s *fakeStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[id]
	return ok
}

func (s *fakeStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listed
}

// failingStorage fails every removal with a non "not exist" error.
type failingStorage struct {
	storage.Storage
}

func (failingStorage) Remove(ctx context.Context, path string) error {
	return goerrors.New("disk on fire")
}

func expiredFile(t *testing.T, dir, id string, ago time.Duration, create bool) entity.File {
	t.Helper()
	path := filepath.Join(dir, id)
	if create {
		require.NoError(t, os.WriteFile(path, []byte(id), 0o644))
	}
	now := time.Now()
	return entity.File{ID: id, Name: id, Path: path, UploadedAt: now.Add(-time.Hour).UnixMilli(), ExpiresAt: now.Add(-ago).UnixMilli()}
}

func TestSweepRemovesExpiredFiles(t *testing.T) {
	disk := newTestDisk(t)
	dir := disk.Root()
	present := expiredFile(t, dir, "present", 10*time.Second, true)
	missing := expiredFile(t, dir, "missing", 10*time.Second, false)
	alive := expiredFile(t, dir, "alive", -time.Hour, true)
	store := newFakeStore(present, missing, alive)
	bus := &test.MockBroadcaster{}

	sweeper := NewSweeper(store, disk, bus, nil, SweeperOptions{Interval: time.Hour}, logger)
	removed, err := sweeper.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoFileExists(t, present.Path)
	assert.FileExists(t, alive.Path)
	assert.False(t, store.has("present"))
	assert.False(t, store.has("missing"))
	assert.True(t, store.has("alive"))
	// One event per sweep, not per file
	assert.Equal(t, []entity.Event{entity.FilesEvent(entity.FilesActionCleanup)}, bus.Events())
}

func TestSweepWithNothingExpired(t *testing.T) {
	disk := newTestDisk(t)
	store := newFakeStore(expiredFile(t, disk.Root(), "alive", -time.Hour, true))
	bus := &test.MockBroadcaster{}

	removed, err := NewSweeper(store, disk, bus, nil, SweeperOptions{Interval: time.Hour}, logger).Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Empty(t, bus.Events())
}

func TestSweepKeepsRecordWhenStorageFails(t *testing.T) {
	disk := newTestDisk(t)
	file := expiredFile(t, disk.Root(), "stuck", time.Minute, true)
	store := newFakeStore(file)
	bus := &test.MockBroadcaster{}

	removed, err := NewSweeper(store, failingStorage{disk}, bus, nil, SweeperOptions{Interval: time.Hour}, logger).Sweep(ctx)

	assert.Error(t, err)
	assert.Equal(t, 0, removed)
	// Retried on the next sweep since it is still expired
	assert.True(t, store.has("stuck"))
	assert.Empty(t, bus.Events())
}

func TestSweepMissingContentWithRedis(t *testing.T) {
	repo, _ := newTestRepository(t)
	disk := newTestDisk(t)
	file := expiredFile(t, disk.Root(), "gone", 10*time.Second, false)
	require.NoError(t, repo.InsertFile(ctx, logger, file))
	bus := &test.MockBroadcaster{}

	removed, err := NewSweeper(repo, disk, bus, nil, SweeperOptions{Interval: time.Hour}, logger).Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = repo.GetFile(ctx, logger, "gone")
	assert.Error(t, err)
	assert.Equal(t, []entity.Event{entity.FilesEvent(entity.FilesActionCleanup)}, bus.Events())
}

func TestSweeperStopWhileSleeping(t *testing.T) {
	disk := newTestDisk(t)
	store := newFakeStore(expiredFile(t, disk.Root(), "old", time.Minute, true))
	bus := &test.MockBroadcaster{}
	sweeper := NewSweeper(store, disk, bus, nil, SweeperOptions{Interval: time.Hour}, logger)

	assert.Equal(t, Stopped, sweeper.State())
	sweeper.Start(ctx)
	assert.Eventually(t, func() bool { return sweeper.State() == Sleeping }, time.Second, time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))

	assert.Equal(t, Stopped, sweeper.State())
	assert.Equal(t, 0, store.listCount())
	assert.True(t, store.has("old"))
	assert.Empty(t, bus.Events())
	// Stopping again is harmless
	assert.NoError(t, sweeper.Stop(stopCtx))
}

func TestSweeperStopsWhenParentContextEnds(t *testing.T) {
	sweeper := NewSweeper(newFakeStore(), newTestDisk(t), &test.MockBroadcaster{}, nil, SweeperOptions{Interval: time.Hour}, logger)
	parent, cancel := context.WithCancel(ctx)
	sweeper.Start(parent)
	cancel()
	assert.Eventually(t, func() bool { return sweeper.State() == Stopped }, time.Second, time.Millisecond)
}

func TestSweeperSkipsStartupSweepWhenAlreadyCancelled(t *testing.T) {
	disk := newTestDisk(t)
	store := newFakeStore(expiredFile(t, disk.Root(), "old", time.Minute, true))
	bus := &test.MockBroadcaster{}
	sweeper := NewSweeper(store, disk, bus, nil, SweeperOptions{Interval: time.Hour, SweepOnStart: true}, logger)

	parent, cancel := context.WithCancel(ctx)
	cancel()
	sweeper.Start(parent)

	stopCtx, stop := context.WithTimeout(ctx, time.Second)
	defer stop()
	require.NoError(t, sweeper.Stop(stopCtx))
	assert.Equal(t, Stopped, sweeper.State())
	assert.Equal(t, 0, store.listCount())
	assert.True(t, store.has("old"))
	assert.Empty(t, bus.Events())
}

func TestSweeperFinishesSweepBeforeStopping(t *testing.T) {
	disk := newTestDisk(t)
	file := expiredFile(t, disk.Root(), "old", time.Minute, true)
	store := newFakeStore(file)
	store.entered = make(chan struct{})
	store.release = make(chan struct{})
	bus := &test.MockBroadcaster{}
	sweeper := NewSweeper(store, disk, bus, nil, SweeperOptions{Interval: time.Hour, SweepOnStart: true}, logger)

	sweeper.Start(ctx)
	<-store.entered
	assert.Equal(t, Sweeping, sweeper.State())

	stopped := make(chan error, 1)
	go func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		stopped <- sweeper.Stop(stopCtx)
	}()

	select {
	case <-stopped:
		t.Fatal("sweeper stopped in the middle of a sweep")
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)

	require.NoError(t, <-stopped)
	assert.Equal(t, Stopped, sweeper.State())
	assert.NoError(t, store.ctxErr)
	assert.False(t, store.has("old"))
	assert.NoFileExists(t, file.Path)
	assert.Len(t, bus.Events(), 1)
}

func TestSweeperSurvivesErrors(t *testing.T) {
	disk := newTestDisk(t)
	file := expiredFile(t, disk.Root(), "old", time.Minute, true)
	store := newFakeStore(file)
	store.listErrs = []error{goerrors.New("redis hiccup"), goerrors.New("redis hiccup again")}
	bus := &test.MockBroadcaster{}
	sweeper := NewSweeper(store, disk, bus, nil, SweeperOptions{Interval: 5 * time.Millisecond}, logger)

	sweeper.Start(ctx)
	defer sweeper.Stop(ctx)

	assert.Eventually(t, func() bool { return !store.has("old") }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, store.listCount(), 3)
	assert.NotEqual(t, Stopped, sweeper.State())
}

// panicStore blows up on the first listing only.
type panicStore struct {
	*fakeStore
	once sync.Once
}

func (p *panicStore) ListExpired(ctx context.Context, logger log.Logger, now time.Time) ([]entity.ExpiredFile, error) {
	panicked := false
	p.once.Do(func() { panicked = true })
	if panicked {
		panic("unexpected")
	}
	return p.fakeStore.ListExpired(ctx, logger, now)
}

func TestSweeperSurvivesPanics(t *testing.T) {
	disk := newTestDisk(t)
	store := &panicStore{fakeStore: newFakeStore(expiredFile(t, disk.Root(), "old", time.Minute, true))}
	sweeper := NewSweeper(store, disk, &test.MockBroadcaster{}, nil, SweeperOptions{Interval: 5 * time.Millisecond}, log.NewWithWriter(io.Discard, "test"))

	sweeper.Start(ctx)
	defer sweeper.Stop(ctx)

	assert.Eventually(t, func() bool { return !store.has("old") }, 2*time.Second, 5*time.Millisecond)
}

func TestSweeperStateString(t *testing.T) {
	assert.Equal(t, "sleeping", Sleeping.String())
	assert.Equal(t, "sweeping", Sweeping.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "SweeperState(7)", SweeperState(7).String())
}
