package gateway

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"marketlens/internal/logger"
	"marketlens/internal/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	requestTimeout = 30 * time.Second

	defaultMaxInFlight = 4
)

// Request is a client message.
type Request struct {
	Type      string `json:"type"` // indicators | trend | predict | subscribe_sweep | unsubscribe_sweep
	ReqID     string `json:"req_id,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

// Response answers one Request. Exactly one of Data and Error is set.
type Response struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	sweeps   atomic.Bool
	inflight chan struct{} // semaphore for analysis requests
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		hub:      h,
		inflight: make(chan struct{}, max(h.MaxInFlight, 1)),
	}
}

func (c *Client) sweepSubscribed() bool { return c.sweeps.Load() }

// enqueue drops the frame when the client is too slow to keep up. Callers
// hold the hub read lock, so send is never closed underneath them.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.hub.dropped()
	}
}

func (c *Client) reply(resp Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[gateway] marshal ws response: %v", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; ok {
		c.enqueue(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			c.reply(Response{Type: "error", Error: "invalid message: " + err.Error(), Code: 400})
			continue
		}

		switch req.Type {
		case "subscribe_sweep":
			c.sweeps.Store(true)
			c.reply(Response{Type: req.Type, ReqID: req.ReqID, Data: "subscribed"})
		case "unsubscribe_sweep":
			c.sweeps.Store(false)
			c.reply(Response{Type: req.Type, ReqID: req.ReqID, Data: "unsubscribed"})
		case "indicators", "trend", "predict":
			select {
			case c.inflight <- struct{}{}:
				go func() {
					defer func() { <-c.inflight }()
					c.handle(ctx, req)
				}()
			default:
				c.reply(Response{Type: req.Type, ReqID: req.ReqID, Error: "too many requests in flight", Code: http.StatusTooManyRequests})
			}
		default:
			c.reply(Response{Type: "error", ReqID: req.ReqID, Error: "unknown message type " + req.Type, Code: 400})
		}
	}
}

// handle runs one analysis request off the read loop. A panic is answered
// with a 500 instead of taking the process down.
func (c *Client) handle(parent context.Context, req Request) {
	ctx, cancel := context.WithTimeout(logger.WithTraceID(parent, logger.NewTraceID()), requestTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in ws request", append([]any{"type", req.Type, "symbol", req.Symbol, "panic", r}, logger.LogWithTrace(ctx)...)...)
			c.reply(Response{Type: req.Type, ReqID: req.ReqID, Error: "internal error", Code: http.StatusInternalServerError})
		}
	}()

	data, err := c.dispatch(ctx, req)
	resp := Response{Type: req.Type, ReqID: req.ReqID}
	if err != nil {
		resp.Error, resp.Code = err.Error(), StatusFor(err)
	} else {
		resp.Data = data
	}
	c.reply(resp)
}

func (c *Client) dispatch(ctx context.Context, req Request) (any, error) {
	if req.Symbol == "" {
		return nil, errorf("symbol is required")
	}
	svc := c.hub.svc
	switch req.Type {
	case "indicators":
		if req.Timeframe == "" {
			req.Timeframe = string(c.hub.DefaultTimeframe)
		}
		tf, err := model.ParseTimeframe(req.Timeframe)
		if err != nil {
			return nil, err
		}
		rows, err := svc.Indicators(ctx, req.Symbol, tf)
		if err != nil {
			return nil, err
		}
		return StocksResponse{Symbol: model.NormalizeSymbol(req.Symbol), Timeframe: string(tf), Records: toRowsOut(rows)}, nil
	case "trend":
		v, err := svc.Trend(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
		return toTechnicalStatus(req.Symbol, v), nil
	default:
		rep, err := svc.Predict(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
		return toPredictResponse(rep), nil
	}
}
