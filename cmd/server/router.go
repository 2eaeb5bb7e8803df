// List of all REST API endpoints being used by Dropzone can be found here.

package main

import (
	"Dropzone/internal/clipboard"
	"Dropzone/internal/errors"
	"Dropzone/internal/files"
	"Dropzone/internal/metrics"
	"Dropzone/internal/sse"
	"Dropzone/internal/storage"
	"Dropzone/pkg/db"
	"Dropzone/pkg/log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	tusd "github.com/tus/tusd/pkg/handler"
)

// Everything the router needs to hand out to the API handlers.
type routes struct {
	staticDir string
	db        *db.RedisDB
	bus       sse.Service
	files     files.Service
	clipboard clipboard.Service
	// nil when resumable uploads are unavailable
	tus      *tusd.UnroutedHandler
	gatherer prometheus.Gatherer
	logger   log.Logger
}

func Router(router *gin.Engine, r routes) {
	// This is the route to default path, serving the web client
	router.GET("/", func(gctx *gin.Context) {
		gctx.File(filepath.Join(r.staticDir, "index.html"))
	})
	router.Static("/static", r.staticDir)
	router.GET("/healthz", healthz(r))

	sse.APIHandlers(router, r.bus, r.logger)
	files.APIHandlers(router, r.files, r.logger)
	clipboard.APIHandlers(router, r.clipboard, r.logger)
	metrics.APIHandlers(router, r.gatherer)
	if r.tus != nil {
		storage.APIHandlers(router, r.tus)
	}
}

// healthz reports whether redis answers and how many subscribers are connected.
func healthz(r routes) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		if err := r.db.Client().Ping(gctx).Err(); err != nil {
			r.logger.WithCtx(gctx).Error().Err(err).Msg("Health check couldn't PING the redis-server")
			gctx.AbortWithStatusJSON(http.StatusServiceUnavailable, errors.ServiceUnavailable("Redis is unreachable"))
			return
		}
		gctx.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"subscribers": r.bus.Count(),
		})
	}
}
