package handlers

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/events"
)

// wsConn is the subset of *websocket.Conn the hub writes through.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
}

// WSHub pushes session events (wallet state transitions, purchase outcomes)
// to connected browser clients. Bus handlers run in the publisher's
// goroutine, so events are queued and written by a single writer goroutine;
// the websocket library allows at most one concurrent writer per connection.
type WSHub struct {
	bus   *events.Bus
	log   *zap.Logger
	unsub func()
	queue chan events.Event
	done  chan struct{}

	mu    sync.RWMutex
	conns map[wsConn]struct{}
}

func NewWSHub(bus *events.Bus, log *zap.Logger) *WSHub {
	return &WSHub{
		bus:   bus,
		log:   log,
		queue: make(chan events.Event, 64),
		done:  make(chan struct{}),
		conns: make(map[wsConn]struct{}),
	}
}

func (h *WSHub) Start() {
	h.unsub = h.bus.Subscribe(h.enqueue)
	go h.writeLoop()
}

func (h *WSHub) Stop() {
	if h.unsub != nil {
		h.unsub()
	}
	close(h.done)
}

// enqueue never blocks the publisher; a full queue drops the event.
func (h *WSHub) enqueue(event events.Event) {
	select {
	case h.queue <- event:
	default:
		h.log.Warn("ws event queue full, dropping event", zap.String("type", event.Type))
	}
}

func (h *WSHub) writeLoop() {
	for {
		select {
		case <-h.done:
			return
		case event := <-h.queue:
			h.broadcast(event)
		}
	}
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("failed to marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.conns {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (h *WSHub) register(conn wsConn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *WSHub) deregister(conn wsConn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	h.register(conn)

	defer func() {
		h.deregister(conn)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
