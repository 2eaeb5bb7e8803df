// Exposes all of the REST APIs related to SSE in Dropzone.

package sse

import (
	"Dropzone/internal/errors"
	"Dropzone/pkg/log"
	"Dropzone/pkg/middlewares"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Registers all of the event stream handlers related to internal package sse onto the gin server.
func APIHandlers(router *gin.Engine, service Service, logger log.Logger) {
	router.GET("/events", middlewares.SSEMiddleware(), SSEConnManagerMiddleware(service, logger), ssehandler(logger))
	router.GET("/ws", wshandler(service, logger))
}

func ssehandler(logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		sub, ok := gctx.Value(subscriberKey).(*Subscriber)
		if !ok {
			// Type assertion error
			logger.WithCtx(gctx).Error().Msg("Type assertion error in ssehandler")
			gctx.AbortWithStatusJSON(http.StatusInternalServerError, errors.InternalServerError(""))
			return
		}
		// Send the headers right away so the client knows the stream is open
		gctx.Status(http.StatusOK)
		gctx.Writer.WriteHeaderNow()
		gctx.Writer.Flush()

		gctx.Stream(func(w io.Writer) bool {
			ev, err := sub.Next(gctx.Request.Context())
			if err != nil {
				// Client exit or bus closed
				return false
			}
			data, err := ev.Data()
			if err != nil {
				logger.WithCtx(gctx).Error().Err(err).Msgf("Couldn't encode %s event, skipping it", ev.Kind)
				return true
			}
			gctx.SSEvent(ev.Kind, data)
			return true
		})
	}
}
