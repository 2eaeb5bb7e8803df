// WebSocket flavour of the event stream, for clients which can't use EventSource.

package sse

import (
	"Dropzone/pkg/log"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dropzone is a LAN tool, CORS is handled by CORS_ORIGIN on plain routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wshandler(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		conn, err := upgrader.Upgrade(gctx.Writer, gctx.Request, nil)
		if err != nil {
			// upgrader has already written the error response.
			logger.WithCtx(gctx).Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		sub := service.Subscribe()
		defer service.Unsubscribe(sub)
		logger.WithCtx(gctx).Info().Msgf("Opened websocket stream: %s", sub.ID())

		ctx, cancel := context.WithCancel(gctx.Request.Context())
		defer cancel()

		go readPump(conn, cancel)
		go pingPump(ctx, conn, sub.Done())

		for {
			ev, err := sub.Next(ctx)
			if err != nil {
				if errors.Is(err, ErrSubscriberClosed) {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(writeTimeout))
				}
				logger.WithCtx(gctx).Info().Msgf("Closed websocket stream: %s", sub.ID())
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				logger.WithCtx(gctx).Debug().Err(err).Msgf("Write to websocket stream %s failed", sub.ID())
				return
			}
		}
	}
}

// readPump only exists to process control frames and notice the peer going away.
// Clients never send anything meaningful on this channel.
func readPump(conn *websocket.Conn, gone context.CancelFunc) {
	defer gone()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingPump keeps the connection alive until ctx ends or the subscriber is gone.
// WriteControl is safe alongside the writer loop.
func pingPump(ctx context.Context, conn *websocket.Conn, gone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
