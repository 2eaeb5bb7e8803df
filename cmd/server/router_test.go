// Router tests in Dropzone.

package main

import (
	"Dropzone/internal/clipboard"
	"Dropzone/internal/files"
	"Dropzone/internal/metrics"
	"Dropzone/internal/sse"
	"Dropzone/internal/storage"
	"Dropzone/internal/test"
	"Dropzone/pkg/db"
	"Dropzone/pkg/log"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Global instance of log.Logger to be used during router testing.
var logger log.Logger = log.NewWithWriter(io.Discard, "test")

// Helper to build up the whole router on top of miniredis and a temp upload directory.
func setupRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	dbConn := db.NewFromClient(client)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>Dropzone</h1>"), 0o644))
	disk, err := storage.NewDisk(t.TempDir(), logger)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	bus := sse.NewService(logger, m)
	t.Cleanup(bus.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	filesService := files.NewService(files.NewRepository(dbConn), disk, bus, m, files.Options{TTL: time.Hour, MaxUploadSize: 1024}, logger)
	tusHandler, err := storage.GetTusdStorageHandler(ctx, disk, 1024, time.Hour, filesService, logger)
	require.NoError(t, err)

	router := test.MockRouter()
	Router(router, routes{
		staticDir: staticDir,
		db:        dbConn,
		bus:       bus,
		files:     filesService,
		clipboard: clipboard.NewService(clipboard.NewRepository(dbConn), bus, logger),
		tus:       tusHandler,
		gatherer:  registry,
		logger:    logger,
	})
	return router, srv
}

func TestIndex(t *testing.T) {
	router, _ := setupRouter(t)

	w := test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/",
		WantResponse: []int{http.StatusOK},
	})
	assert.Contains(t, w.Body.String(), "Dropzone")
}

func TestHealthz(t *testing.T) {
	router, srv := setupRouter(t)

	w := test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/healthz",
		WantResponse: []int{http.StatusOK},
	})
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["subscribers"])

	srv.Close()
	test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/healthz",
		WantResponse: []int{http.StatusServiceUnavailable},
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/clipboard",
		Body:         strings.NewReader(`{"content":"x"}`),
		WantResponse: []int{http.StatusOK},
		Headers:      map[string]string{"Content-Type": "application/json"},
	})
	w := test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodGet,
		Path:         "/metrics",
		WantResponse: []int{http.StatusOK},
	})
	assert.Contains(t, w.Body.String(), `dropzone_events_broadcast_total{kind="clipboard"} 1`)
}

func TestTusCreateRequiresFilename(t *testing.T) {
	router, _ := setupRouter(t)

	test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/upload/tus/",
		WantResponse: []int{http.StatusBadRequest},
		Headers: map[string]string{
			"Tus-Resumable": "1.0.0",
			"Upload-Length": "5",
		},
	})
	test.ExecuteAPITest(logger, t, router, test.RequestAPITest{
		Method:       http.MethodPost,
		Path:         "/api/upload/tus/",
		WantResponse: []int{http.StatusCreated},
		Headers: map[string]string{
			"Tus-Resumable":   "1.0.0",
			"Upload-Length":   "5",
			"Upload-Metadata": "filename aGVsbG8udHh0",
		},
	})
}
