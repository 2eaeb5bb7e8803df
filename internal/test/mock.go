// Mock methods required in Dropzone tests are all here.

package test

import (
	"Dropzone/internal/entity"
	"Dropzone/pkg/middlewares"
	"sync"

	"github.com/gin-gonic/gin"
)

// Returns a fresh gin router in test mode with the global middlewares applied.
func MockRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middlewares.CORSMiddleware("*")) // CORS middleware which allows request from all origin
	return router
}

// MockBroadcaster records every event it is asked to broadcast.
type MockBroadcaster struct {
	mu     sync.Mutex
	events []entity.Event
}

func (m *MockBroadcaster) Broadcast(ev entity.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events.
func (m *MockBroadcaster) Events() []entity.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.Event(nil), m.events...)
}
