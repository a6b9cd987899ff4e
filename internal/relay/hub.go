// Package relay rebroadcasts chat messages between websocket peers. Every
// message a peer sends reaches every connected peer, the sender included.
// Delivery is best effort and nothing is stored.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventChatMessage is the only event the relay forwards.
const EventChatMessage = "chat-message"

// writeWait bounds a single frame write to one peer.
const writeWait = 10 * time.Second

// Message is the frame envelope. Data is opaque and never decoded.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// peer is one connected client. gorilla/websocket allows a single
// concurrent writer per connection, so writes go through mu.
type peer struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub tracks connected peers. The zero value is not usable; call NewHub.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	peers map[uuid.UUID]*peer
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		peers:  make(map[uuid.UUID]*peer),
	}
}

// Count returns the number of connected peers. Safe on a nil hub.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) add(conn *websocket.Conn) *peer {
	p := &peer{id: uuid.New(), conn: conn}
	h.mu.Lock()
	h.peers[p.id] = p
	n := len(h.peers)
	h.mu.Unlock()

	h.logger.Info("relay peer connected", "peer", p.id, "remote", conn.RemoteAddr(), "peers", n)
	return p
}

// remove forgets a peer and closes its connection. Removing a peer twice
// is harmless.
func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	p, ok := h.peers[id]
	delete(h.peers, id)
	n := len(h.peers)
	h.mu.Unlock()

	if !ok {
		return
	}
	p.conn.Close()
	h.logger.Info("relay peer disconnected", "peer", id, "peers", n)
}

// Broadcast writes frame to every connected peer and returns how many
// writes succeeded. Peers whose write fails are dropped.
func (h *Hub) Broadcast(frame []byte) int {
	h.mu.RLock()
	targets := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, p := range targets {
		if err := p.write(frame); err != nil {
			h.logger.Debug("relay write failed, dropping peer", "peer", p.id, "error", err)
			h.remove(p.id)
			continue
		}
		delivered++
	}
	return delivered
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]uuid.UUID, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.remove(id)
	}
}
