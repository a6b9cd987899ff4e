package relay

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// maxFrameSize caps inbound frames.
const maxFrameSize = 64 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Peers connect from the landing page and from arbitrary local tools.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades requests to websocket connections served by hub.
func Handler(hub *Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an HTTP error.
			hub.logger.Debug("relay upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		conn.SetReadLimit(maxFrameSize)

		p := hub.add(conn)
		defer hub.remove(p.id)

		hub.serve(p)
	})
}

// serve reads frames from p until the connection ends.
func (h *Hub) serve(p *peer) {
	for {
		kind, frame, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("relay read ended", "peer", p.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			h.logger.Debug("relay frame ignored", "peer", p.id, "reason", "not a json object")
			continue
		}
		if msg.Event != EventChatMessage {
			h.logger.Debug("relay frame ignored", "peer", p.id, "event", msg.Event)
			continue
		}

		n := h.Broadcast(frame)
		h.logger.Debug("relay message broadcast", "peer", p.id, "size", len(frame), "delivered", n)
	}
}
