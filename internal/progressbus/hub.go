package progressbus

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketHub bridges an InMemoryBus to websocket clients, one group of
// connections per conversation id. The connection map and its guarding
// sync.RWMutex are the same shape as ConnectionManager; generalized here
// from one connection per user key to a set of connections per
// conversation group, since many browser tabs may watch one ingestion.
type WebSocketHub struct {
	bus *InMemoryBus

	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}

	upgrader websocket.Upgrader
}

func NewWebSocketHub(bus *InMemoryBus) *WebSocketHub {
	return &WebSocketHub{
		bus:   bus,
		conns: make(map[string]map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeConversation upgrades the request to a websocket and streams
// every ProgressEvent published for conversationID to it as JSON until
// the client disconnects or the bus subscription ends.
func (h *WebSocketHub) ServeConversation(w http.ResponseWriter, r *http.Request, conversationID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("progressbus: upgrade failed: %v", err)
		return
	}

	h.add(conversationID, conn)
	defer h.remove(conversationID, conn)

	events, unsubscribe := h.bus.Subscribe(conversationID)
	defer unsubscribe()

	// Drain client reads on a separate goroutine purely to detect
	// disconnects (this protocol is server-push only).
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHub) add(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.conns[conversationID]
	if !ok {
		group = make(map[*websocket.Conn]struct{})
		h.conns[conversationID] = group
	}
	group[conn] = struct{}{}
}

func (h *WebSocketHub) remove(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if group, ok := h.conns[conversationID]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.conns, conversationID)
		}
	}
	_ = conn.Close()
}

// ConnectionCount reports how many live connections are joined to
// conversationID, used for diagnostics and tests.
func (h *WebSocketHub) ConnectionCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[conversationID])
}
