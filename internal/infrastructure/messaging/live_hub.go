// Package messaging pushes survey and presence events to live websocket clients.
package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
)

const (
	EventSurveyCreated = "survey.created"
	EventSurveyDeleted = "survey.deleted"
	EventPresence      = "presence"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Event is the envelope written to every live client.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// PresencePayload is the body of a presence event.
type PresencePayload struct {
	OnlineUsers int `json:"onlineUsers"`
}

// LiveClient represents a single connected live feed client.
type LiveClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// NewLiveClient wraps conn with a buffered send queue.
func NewLiveClient(conn *websocket.Conn) *LiveClient {
	return &LiveClient{Conn: conn, Send: make(chan []byte, sendBuffer)}
}

// PresenceCounter reports how many visitors are online.
type PresenceCounter func(ctx context.Context) (int, error)

// LiveHub manages all connected live clients and broadcasts events.
type LiveHub struct {
	clients    map[*LiveClient]bool
	register   chan *LiveClient
	unregister chan *LiveClient
	broadcast  chan []byte
	stopped    chan struct{}
	mu         sync.RWMutex

	countOnline PresenceCounter
	tick        time.Duration
	logger      *logging.ChanneledLogger
	onConnect   func(delta int)
}

// NewLiveHub creates a new hub. countOnline may be nil to disable presence ticks.
func NewLiveHub(countOnline PresenceCounter, tick time.Duration, logger *logging.ChanneledLogger) *LiveHub {
	if tick <= 0 {
		tick = 20 * time.Second
	}
	return &LiveHub{
		clients:     make(map[*LiveClient]bool),
		register:    make(chan *LiveClient),
		unregister:  make(chan *LiveClient),
		broadcast:   make(chan []byte, 256),
		stopped:     make(chan struct{}),
		countOnline: countOnline,
		tick:        tick,
		logger:      logger,
	}
}

// OnConnectionChange installs a callback receiving +1/-1 as clients come and go.
func (h *LiveHub) OnConnectionChange(fn func(delta int)) {
	h.onConnect = fn
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing every client.
func (h *LiveHub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			h.logger.Live().Info("Live hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.changed(1)
			h.logger.Live().Debug("Live client registered", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.changed(-1)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Live().Debug("Live client unregistered", "clients", count)

		case message := <-h.broadcast:
			h.distribute(message)

		case <-ticker.C:
			h.publishPresence(ctx)
		}
	}
}

func (h *LiveHub) changed(delta int) {
	if h.onConnect != nil {
		h.onConnect(delta)
	}
}

// Register queues a client for registration. It reports false once the hub has stopped.
func (h *LiveHub) Register(client *LiveClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

// Unregister queues a client for unregistration.
func (h *LiveHub) Unregister(client *LiveClient) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// ClientCount returns the number of registered clients.
func (h *LiveHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for every client. It never blocks; when the queue
// is full the event is dropped.
func (h *LiveHub) Publish(eventType string, data any) {
	message, err := json.Marshal(Event{Type: eventType, At: time.Now().UTC(), Data: data})
	if err != nil {
		h.logger.Live().Error("Failed to marshal live event", "type", eventType, "error", err.Error())
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Live().Warn("Live broadcast queue full, event dropped", "type", eventType)
	}
}

func (h *LiveHub) distribute(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			// Slow client; its own pump will notice the gap on the next write.
		}
	}
}

func (h *LiveHub) publishPresence(ctx context.Context) {
	if h.countOnline == nil || h.ClientCount() == 0 {
		return
	}
	n, err := h.countOnline(ctx)
	if err != nil {
		h.logger.Live().Warn("Presence count for live feed failed", "error", err.Error())
		return
	}
	h.Publish(EventPresence, PresencePayload{OnlineUsers: n})
}

// Serve registers client and pumps messages until the connection closes.
// It blocks, so callers run it on the request goroutine.
func (h *LiveHub) Serve(client *LiveClient) {
	if !h.Register(client) {
		client.Conn.Close()
		return
	}
	done := make(chan struct{})
	go func() {
		h.readPump(client)
		close(done)
	}()
	h.writePump(client, done)
}

// readPump discards inbound frames and detects disconnects.
func (h *LiveHub) readPump(client *LiveClient) {
	defer h.Unregister(client)
	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHub) writePump(client *LiveClient, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
