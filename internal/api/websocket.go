// websocket.go - Registry change feed for the web client
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/caremesh/intake/internal/intake"
	"github.com/caremesh/intake/internal/models"
)

// Server -> client frame types
const (
	FrameSnapshot = "snapshot"
	FrameChange   = "change"
)

// pingInterval keeps idle connections alive through proxies.
const pingInterval = 30 * time.Second

// wsFrame is one message of the intake change feed. A snapshot frame is sent
// on connect; a change frame follows every registry mutation. The gate state
// rides along so the client never derives it from stale data.
type wsFrame struct {
	Type      string            `json:"type"`
	Slots     []models.SlotView `json:"slots,omitempty"`
	Change    *models.Change    `json:"change,omitempty"`
	CanSubmit bool              `json:"canSubmit"`
	Submitted bool              `json:"submitted"`
}

// WebSocketHandler streams registry changes to connected clients.
type WebSocketHandler struct {
	registry *intake.Registry
	gate     *intake.Gate
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocket handler for the intake feed.
func NewWebSocketHandler(registry *intake.Registry, gate *intake.Gate) *WebSocketHandler {
	return &WebSocketHandler{
		registry: registry,
		gate:     gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin is enforced by the CORS layer in front of the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleIntakeStream upgrades the connection and pushes one snapshot frame
// followed by a frame per registry change until the client disconnects.
func (h *WebSocketHandler) HandleIntakeStream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	changes, cancel := h.registry.Subscribe()
	defer cancel()

	snapshot := h.registry.Snapshot()
	if err := conn.WriteJSON(wsFrame{
		Type:      FrameSnapshot,
		Slots:     snapshot,
		CanSubmit: !h.gate.Submitted() && intake.CanSubmit(snapshot),
		Submitted: h.gate.Submitted(),
	}); err != nil {
		return nil
	}

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to notice disconnects and process control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			snapshot := h.registry.Snapshot()
			frame := wsFrame{
				Type:      FrameChange,
				Change:    &change,
				CanSubmit: !h.gate.Submitted() && intake.CanSubmit(snapshot),
				Submitted: h.gate.Submitted(),
			}
			if err := conn.WriteJSON(frame); err != nil {
				return nil
			}
		case <-done:
			return nil
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
