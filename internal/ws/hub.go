package ws

import (
	"encoding/json"
	"sync"

	"enchiridion/internal/metrics"
)

// Client is one live feed connection. PartnerID is empty for anonymous viewers.
type Client struct {
	PartnerID string
	Send      chan []byte
	Hub       *Hub
	mu        sync.Mutex
	closed    bool
}

func NewClient(partnerID string) *Client {
	return &Client{PartnerID: partnerID, Send: make(chan []byte, 256)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// Hub keeps the connected clients and fans events out to them. Slow clients
// drop messages instead of blocking the sender.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	byPartner map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		byPartner: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	if c.PartnerID != "" {
		if h.byPartner[c.PartnerID] == nil {
			h.byPartner[c.PartnerID] = make(map[*Client]struct{})
		}
		h.byPartner[c.PartnerID][c] = struct{}{}
	}
	metrics.FeedClients.Set(float64(len(h.clients)))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if m := h.byPartner[c.PartnerID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byPartner, c.PartnerID)
		}
	}
	metrics.FeedClients.Set(float64(len(h.clients)))
}

func (h *Hub) BroadcastToPartner(partnerID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byPartner[partnerID]))
	for c := range h.byPartner[partnerID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	deliver(clients, data)
}

func (h *Hub) BroadcastAll(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	deliver(clients, data)
}

func deliver(clients []*Client, data []byte) {
	for _, c := range clients {
		c.mu.Lock()
		if !c.closed {
			select {
			case c.Send <- data:
			default:
			}
		}
		c.mu.Unlock()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
