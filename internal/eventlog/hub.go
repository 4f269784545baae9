package eventlog

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"leadflow/internal/common/logger"
	"leadflow/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64

	MessageInitialEvents = "initial_events"
	MessageEventUpdate   = "event_update"
)

// Message is the envelope pushed to websocket subscribers.
type Message struct {
	Type   string            `json:"type"`
	Event  *models.EventLog  `json:"event,omitempty"`
	Events []models.EventLog `json:"events,omitempty"`
}

type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	teamID string
	once   sync.Once
}

func (s *subscriber) wants(e models.EventLog) bool {
	return s.teamID == "" || s.teamID == e.TeamID
}

// Hub fans event changes out to websocket subscribers.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.WithFields(map[string]interface{}{"component": "eventlog-hub"}),
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Serve upgrades the request and sends initial as the first message.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, teamID string, initial []models.EventLog) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if initial == nil {
		initial = []models.EventLog{}
	}
	first, err := json.Marshal(struct {
		Type   string            `json:"type"`
		Events []models.EventLog `json:"events"`
	}{MessageInitialEvents, initial})
	if err != nil {
		conn.Close()
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendQueueSize), teamID: teamID}
	sub.send <- first

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("subscriber connected", map[string]interface{}{"teamId": teamID})

	go h.writePump(sub)
	go h.readPump(sub)
}

// Broadcast queues an event_update for every interested subscriber.
// Subscribers whose queue is full are dropped.
func (h *Hub) Broadcast(e models.EventLog) {
	payload, err := json.Marshal(Message{Type: MessageEventUpdate, Event: &e})
	if err != nil {
		h.logger.Error("failed to encode event update", map[string]interface{}{"error": err.Error(), "eventId": e.ID})
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for sub := range h.subs {
		if !sub.wants(e) {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn("dropping slow subscriber", map[string]interface{}{"teamId": sub.teamID})
		h.remove(sub)
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.once.Do(func() {
		close(sub.send)
	})
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(sub)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		}
	}
}

// readPump only exists to notice disconnects and answer pongs.
func (h *Hub) readPump(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(maxMessageSize)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("subscriber read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}
	}
}
