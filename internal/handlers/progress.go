package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sceneflow-backend/internal/progress"
)

const (
	progressWriteTimeout = 5 * time.Second
	progressPingInterval = 30 * time.Second
)

type ProgressHandler struct {
	registry *progress.Registry
	upgrader websocket.Upgrader
}

func NewProgressHandler(registry *progress.Registry) *ProgressHandler {
	return &ProgressHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The connection id is the capability; any origin may attach.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Attach godoc
// @Summary     Open a progress channel
// @Description Upgrades to WebSocket and streams progress frames for the given connection id until a terminal frame or disconnect.
// @Tags        progress
// @Param       connection_id path string true "Caller-chosen connection id"
// @Router      /progress/{connection_id} [get]
func (h *ProgressHandler) Attach(c *gin.Context) {
	connectionID := c.Param("connection_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	ch, err := h.registry.Open(connectionID)
	if err != nil {
		conn.Close()
		return
	}

	// Reader goroutine: the caller never sends data frames; a read error
	// means it disconnected, which tears the channel down without a
	// terminal frame. Detach rather than Close: a half-open socket can
	// surface the read error long after a reconnect has replaced the
	// channel under the same id, and that replacement must survive.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.registry.Detach(connectionID, ch)
				return
			}
		}
	}()

	h.pump(conn, ch)
}

// pump forwards frames until the channel closes (terminal frame sent or
// channel torn down), keeping the connection alive with pings in between.
func (h *ProgressHandler) pump(conn *websocket.Conn, ch <-chan progress.Frame) {
	defer conn.Close()

	ticker := time.NewTicker(progressPingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
