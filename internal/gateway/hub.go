package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"marketlens/internal/analysis"
	"marketlens/internal/metrics"
	"marketlens/internal/model"

	"github.com/gorilla/websocket"
)

// SweepSource delivers sweep payloads published by other processes, e.g. the
// Redis store's pub:sweep subscription.
type SweepSource interface {
	SubscribeSweeps(ctx context.Context, fn func(payload []byte)) error
}

// Hub manages websocket clients. Clients issue analysis requests over their
// socket and may subscribe to sweep broadcasts.
type Hub struct {
	svc  *analysis.Service
	prom *metrics.Metrics

	// MaxInFlight caps concurrent analysis requests per client; requests
	// over the cap are answered with 429. Set before serving.
	MaxInFlight int
	// DefaultTimeframe applies to indicator requests without a timeframe.
	DefaultTimeframe model.Timeframe

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a Hub answering requests with svc. prom may be nil.
func NewHub(svc *analysis.Service, prom *metrics.Metrics) *Hub {
	return &Hub{
		svc:              svc,
		prom:             prom,
		MaxInFlight:      defaultMaxInFlight,
		DefaultTimeframe: model.TF1Y,
		clients:          make(map[*Client]bool),
	}
}

// Run relays sweeps from src to subscribed clients. Blocks until ctx is
// cancelled or the subscription fails.
func (h *Hub) Run(ctx context.Context, src SweepSource) error {
	return src.SubscribeSweeps(ctx, h.broadcastSweep)
}

// PublishSweep broadcasts a sweep run to subscribed clients of this process.
func (h *Hub) PublishSweep(run model.SweepRun) {
	payload, err := json.Marshal(run)
	if err != nil {
		log.Printf("[gateway] marshal sweep: %v", err)
		return
	}
	h.broadcastSweep(payload)
}

func (h *Hub) broadcastSweep(payload []byte) {
	envelope, _ := json.Marshal(map[string]any{
		"type": "sweep",
		"data": json.RawMessage(payload),
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.sweepSubscribed() {
			continue
		}
		c.enqueue(envelope)
	}
}

// HandleConn registers an upgraded connection and starts its pumps.
func (h *Hub) HandleConn(conn *websocket.Conn) {
	client := newClient(h, conn)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) dropped() {
	if h.prom != nil {
		h.prom.WSDroppedFrames.Inc()
	}
}
