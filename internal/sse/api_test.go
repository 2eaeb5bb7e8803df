// Event stream API tests in Dropzone.

package sse

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/test"
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to build up a live test server exposing the event stream routes.
func startServer(t *testing.T) (Service, *httptest.Server) {
	t.Helper()
	bus := newTestService()
	router := test.MockRouter()
	APIHandlers(router, bus, logger)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		bus.Close()
		srv.Close()
	})
	return bus, srv
}

type frame struct {
	event string
	data  string
}

// readFrame reads lines until the blank line terminating an SSE frame.
func readFrame(t *testing.T, r *bufio.Reader) frame {
	t.Helper()
	var f frame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if f.event != "" || f.data != "" {
				return f
			}
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		switch field {
		case "event":
			f.event = strings.TrimSpace(value)
		case "data":
			f.data = strings.TrimSpace(value)
		}
	}
}

func TestEventStream(t *testing.T) {
	bus, srv := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return bus.Count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Broadcast(entity.ClipboardEvent("hi"))
	bus.Broadcast(entity.FilesEvent(entity.FilesActionCleanup))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, frame{event: "clipboard", data: `{"content":"hi"}`}, readFrame(t, reader))
	assert.Equal(t, frame{event: "files_update", data: `{"action":"cleanup"}`}, readFrame(t, reader))

	// Client going away must unsubscribe the connection
	cancel()
	assert.Eventually(t, func() bool { return bus.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestEventStreamEndsOnBusClose(t *testing.T) {
	bus, srv := startServer(t)

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return bus.Count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Close()

	done := make(chan struct{})
	go func() {
		// Drains until the server ends the response
		bufio.NewReader(resp.Body).WriteTo(discard{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after bus close")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestWebSocketStream(t *testing.T) {
	bus, srv := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bus.Count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Broadcast(entity.ClipboardEvent("over ws"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Event string                  `json:"event"`
		Data  entity.ClipboardPayload `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "clipboard", msg.Event)
	assert.Equal(t, "over ws", msg.Data.Content)

	conn.Close()
	assert.Eventually(t, func() bool { return bus.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketStreamEndsOnBusClose(t *testing.T) {
	bus, srv := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return bus.Count() == 1 }, time.Second, 5*time.Millisecond)

	bus.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}
