// Server Side Events (SSE) middleware used to populate request context with the client subscriber.

package sse

import (
	"Dropzone/pkg/log"

	"github.com/gin-gonic/gin"
)

// Context key under which the connection's subscriber is stored.
const subscriberKey = "SSE"

// SSEConnManagerMiddleware subscribes the connection to the event bus for the
// duration of the remaining handler chain. Unsubscribe runs whichever way the
// chain ends: client gone, server shutting down or a panic further down.
func SSEConnManagerMiddleware(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		sub := service.Subscribe()
		logger.WithCtx(gctx).Info().Msgf("Opened event stream: %s", sub.ID())

		defer func() {
			service.Unsubscribe(sub)
			logger.WithCtx(gctx).Info().Msgf("Closed event stream: %s", sub.ID())
		}()

		gctx.Set(subscriberKey, sub)
		gctx.Next()
	}
}
