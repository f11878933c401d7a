package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/packsight/packsight/engine"
)

const wsWriteTimeout = 5 * time.Second

// hub fans load-completion events out to websocket clients so the UI
// can refresh without polling /api/v1/result.
type hub struct {
	log      *logrus.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub(log *logrus.Logger) *hub {
	return &hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Local viewer tool; the API is not exposed beyond localhost.
				return true
			},
		},
		conns: map[*websocket.Conn]bool{},
	}
}

func (h *hub) handleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	h.log.Debug("Websocket client connected")

	// Clients never send application messages; the read loop only
	// notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// relay forwards session load events to every connected client until
// the event channel closes.
func (h *hub) relay(events <-chan engine.LoadEvent) {
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.WithError(err).Error("Failed to encode load event")
			continue
		}
		h.broadcast(data)
	}
}

func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(conn)
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}
