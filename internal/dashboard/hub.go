// Package dashboard broadcasts newly merged findings to connected
// live-view clients. Presentation-only: nothing here feeds back into
// detection, and a run with no connected clients behaves exactly as if
// the hub were absent.
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/trade-surveillance-engine/internal/domain"
	"github.com/rawblock/trade-surveillance-engine/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeDeadline = 5 * time.Second

// Hub fans out merged findings to every subscribed websocket client.
// BroadcastFindings never blocks on a slow client: a client whose send
// buffer is full is dropped from the hub rather than stalling the
// aggregator.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

// Subscribe upgrades an incoming request to a websocket connection and
// registers it for broadcasts. Intended to be mounted as a gin handler.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("dashboard: websocket upgrade failed: %v", err)
		return
	}

	outbox := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = outbox
	h.mu.Unlock()

	go h.writeLoop(conn, outbox)
	go h.readLoop(conn, outbox)
}

func (h *Hub) writeLoop(conn *websocket.Conn, outbox chan []byte) {
	for msg := range outbox {
		_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) readLoop(conn *websocket.Conn, outbox chan []byte) {
	defer func() {
		h.remove(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn *websocket.Conn) {
	if outbox, ok := h.clients[conn]; ok {
		close(outbox)
		delete(h.clients, conn)
	}
}

// BroadcastFindings pushes one JSON message carrying all of the request's
// findings to every connected client. A client whose outbox is full (i.e. not draining)
// is dropped rather than backpressuring the caller.
func (h *Hub) BroadcastFindings(requestID string, findings []domain.SuspiciousSequence) {
	if len(findings) == 0 {
		return
	}

	wire := make([]transport.SequenceWire, 0, len(findings))
	for _, f := range findings {
		wire = append(wire, transport.ToWireSequence(f))
	}
	payload, err := json.Marshal(struct {
		RequestID string                  `json:"request_id"`
		Findings  []transport.SequenceWire `json:"findings"`
	}{RequestID: requestID, Findings: wire})
	if err != nil {
		log.Printf("dashboard: marshalling broadcast payload: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, outbox := range h.clients {
		select {
		case outbox <- payload:
		default:
			h.removeLocked(conn)
		}
	}
}
