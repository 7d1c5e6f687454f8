// Package debugserver is an optional introspection HTTP+WS server exposing
// registry contents and a live require event feed — the
// generalization of src/server/server.go's job-management endpoints and its
// websocket upgrade for live updates. It is never required by the core API
// (runtime.Runtime works standalone); cmd/modrun-debugserver is the only
// thing that wires it in.
package debugserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Snapshot is a point-in-time view over a runtime's registries, the
// introspection payload for GET /api/registries.
type Snapshot struct {
	InternalKeys     []string `json:"internalKeys"`
	RealKeys         []string `json:"realKeys"`
	IsolatedRealKeys []string `json:"isolatedRealKeys,omitempty"`
	MockIDs          []string `json:"mockIds"`
	IsolatedMockIDs  []string `json:"isolatedMockIds,omitempty"`
}

// Event is one require occurrence, pushed to every websocket
// subscriber the way wsWriter forwards debug-run output.
type Event struct {
	Kind    string    `json:"kind"` // "require", the only kind runtime.Runtime publishes
	From    string    `json:"from"`
	Request string    `json:"request"`
	Result  string    `json:"result"`
	At      time.Time `json:"at"`
}

// Inspector is the subset of runtime.Runtime the debug server consumes,
// defined here (consumer-side) so runtime need not import this package.
type Inspector interface {
	Snapshot() Snapshot
	Subscribe() (events <-chan Event, unsubscribe func())
}

// Server is the gin-backed HTTP+WS introspection server.
type Server struct {
	inspector Inspector
	upgrade   websocket.Upgrader
}

func New(inspector Inspector) *Server {
	return &Server{
		inspector: inspector,
		upgrade: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegistryRouting wires /api/registries and /api/events onto engine, the
// way server.RegistryRouting groups job endpoints under /api.
func (s *Server) RegistryRouting(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.GET("/registries", s.Registries)
		api.GET("/events", s.Events)
	}
}

func (s *Server) Registries(c *gin.Context) {
	c.JSON(http.StatusOK, s.inspector.Snapshot())
}

// Events upgrades to a websocket and streams every Event until the client
// disconnects, mirroring (s *server) Debug's upgrade-then-stream shape.
func (s *Server) Events(c *gin.Context) {
	ws, err := s.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{})
		return
	}
	defer func(ws *websocket.Conn) {
		_ = ws.Close()
	}(ws)

	events, unsubscribe := s.inspector.Subscribe()
	defer unsubscribe()

	for ev := range events {
		if err := ws.WriteJSON(ev); err != nil {
			return
		}
	}
}

// StartStandalone mirrors server.StartStandalone's shape: register routes
// on an already-constructed gin.Engine and let the caller run it.
func StartStandalone(engine *gin.Engine, inspector Inspector) *Server {
	s := New(inspector)
	s.RegistryRouting(engine)
	return s
}
