package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/audss/oncall/sbc"
	"github.com/audss/oncall/schedule"
)

// WebSocket timeout constants following Gorilla best practices
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// jobEvent is the wire format for dispatcher lifecycle events.
type jobEvent struct {
	Type      string        `json:"type"`
	Job       *schedule.Job `json:"job"`
	Reason    string        `json:"reason,omitempty"`
	Results   []sbc.Outcome `json:"results,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// wsClient is one connected event-stream subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan interface{}
}

// Hub fans dispatcher events out to connected WebSocket clients. It
// implements schedule.Broadcaster; broadcast calls never block, a slow
// client just misses events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	log     *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		log:     log,
	}
}

// Run ties the hub to a lifetime context; when it ends, all client
// connections are closed and their pumps wind down.
func (h *Hub) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		h.closeAll()
	}()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.conn.Close()
		close(client.send)
		delete(h.clients, client)
	}
}

// BroadcastJobClaimed implements schedule.Broadcaster.
func (h *Hub) BroadcastJobClaimed(job *schedule.Job) {
	h.broadcast(jobEvent{Type: "job_claimed", Job: job, Timestamp: time.Now().Unix()})
}

// BroadcastJobApplied implements schedule.Broadcaster.
func (h *Hub) BroadcastJobApplied(job *schedule.Job, outcomes []sbc.Outcome) {
	h.broadcast(jobEvent{Type: "job_applied", Job: job, Results: outcomes, Timestamp: time.Now().Unix()})
}

// BroadcastJobFailed implements schedule.Broadcaster.
func (h *Hub) BroadcastJobFailed(job *schedule.Job, reason string, outcomes []sbc.Outcome) {
	h.broadcast(jobEvent{Type: "job_failed", Job: job, Reason: reason, Results: outcomes, Timestamp: time.Now().Unix()})
}

// BroadcastJobCancelled implements schedule.Broadcaster.
func (h *Hub) BroadcastJobCancelled(job *schedule.Job) {
	h.broadcast(jobEvent{Type: "job_cancelled", Job: job, Timestamp: time.Now().Unix()})
}

// broadcast sends a message to all connected clients. Clients whose
// send buffer is full are skipped. The read lock is held across the
// sends: unregister closes send channels under the write lock, so a
// channel cannot be closed mid-broadcast, and the sends cannot block
// the lock because full buffers are dropped.
func (h *Hub) broadcast(msg interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Channel full - skip
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// HandleWebSocket upgrades GET /ws connections into event subscribers.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan interface{}, 64),
	}
	s.hub.register(client)
	s.log.Infow("WebSocket client connected", "remote", conn.RemoteAddr().String())

	go s.hub.writePump(client)
	go s.hub.readPump(client)
}

// writePump drains the client's send channel and keeps the connection
// alive with pings.
func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				h.unregister(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(client)
				return
			}
		}
	}
}

// readPump discards inbound messages and detects disconnects.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
