package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go-pos-admin/pkg/logger"

	"github.com/gofiber/contrib/websocket"
)

// Event types pushed to connected back-office clients.
const (
	EventProductCreated   = "product_created"
	EventProductUpdated   = "product_updated"
	EventProductDeleted   = "product_deleted"
	EventSaleCreated      = "sale_created"
	EventRefundProcessed  = "refund_processed"
	EventCustomerUpdated  = "customer_updated"
	EventUserStatusUpdate = "user_status_update"
)

const broadcastBuffer = 64

type Hub struct {
	Clients    map[*websocket.Conn]bool
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, broadcastBuffer),
		log:        log,
	}
}

// Run pumps registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			n := len(h.Clients)
			h.mutex.Unlock()
			h.log.Debug(ctx, "ws client connected", logger.Field("clients", n))

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish queues an event for every client. It never blocks the caller; when
// the queue is full the event is dropped and logged.
func (h *Hub) Publish(eventType string, fields map[string]any) {
	if h == nil {
		return
	}
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = eventType

	msg, err := json.Marshal(payload)
	if err != nil {
		h.log.Error(context.Background(), "ws event marshal failed", err, logger.Field("event", eventType))
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		h.log.Warn(context.Background(), "ws broadcast queue full, dropping event", logger.Field("event", eventType))
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}
