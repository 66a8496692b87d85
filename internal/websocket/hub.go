// Package websocket pushes notices to the connected dashboard tabs.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"

	"github.com/google/uuid"
)

type Hub struct {
	// Connected tabs by connection id.
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Every notice also lands in this log.
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run owns client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.ID.String()})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.ID.String()})
			}
			h.mu.Unlock()
		}
	}
}

// Notify logs the notice and sends it to every connected tab. Tabs whose
// buffer is full are disconnected.
func (h *Hub) Notify(notice entity.Notice) {
	h.logger.Info("Notice", notice.Title, map[string]interface{}{
		"notice_id": notice.Id,
		"level":     string(notice.Level),
		"message":   notice.Message,
	})

	data, err := json.Marshal(map[string]interface{}{
		"type": "notice",
		"data": notice,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode notice", map[string]interface{}{"error": err.Error()})
		return
	}

	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, disconnecting", map[string]interface{}{"client_id": client.ID.String()})
		h.unregister <- client
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
