package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stockdash/internal/domain"
	"stockdash/internal/gather"
	"stockdash/internal/metrics"
	"stockdash/internal/view"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 45 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientMessage selects a view and its parameters. Omitted fields keep the
// session's current selection.
type clientMessage struct {
	View    string `json:"view"`
	Ticker  string `json:"ticker,omitempty"`
	Minutes *int   `json:"minutes,omitempty"`
}

// stateMessage carries one view state transition.
type stateMessage struct {
	Type string `json:"type"`
	view.State
}

type snapshotMessage struct {
	Type     string          `json:"type"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type helloMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Client is a single WebSocket session managed by a Hub. Each session owns
// its own view controllers, so one browser tab never sees another's state.
type Client struct {
	id    string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	ctx   context.Context
	stop  context.CancelFunc
	stock *view.StockView
	corr  *view.CorrelationView
}

// HubOptions configures a Hub.
type HubOptions struct {
	DefaultWindow domain.Window
	Location      *time.Location
	Logger        *slog.Logger
}

// Hub manages a set of WebSocket clients and broadcasts messages to all
// connected clients.
type Hub struct {
	src  gather.Source
	opts HubOptions
	log  *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	sessions   atomic.Int64
}

// NewHub creates a new Hub whose sessions fetch through src.
func NewHub(src gather.Source, opts HubOptions) *Hub {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		src:        src,
		opts:       opts,
		log:        log.With("component", "ws"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, after
// closing every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.sessions.Add(1)
			metrics.WebSocketSessions.Inc()
			h.log.Info("session opened", "session", client.id, "remote", client.conn.RemoteAddr().String())
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Info("session closed", "session", client.id)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.enqueue(message) {
					h.log.Warn("dropping slow session", "session", client.id)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.sessions.Add(-1)
	metrics.WebSocketSessions.Dec()
	client.close()
}

// Sessions returns the number of open sessions.
func (h *Hub) Sessions() int { return int(h.sessions.Load()) }

// BroadcastSnapshot pushes a newly recorded snapshot to every session.
func (h *Hub) BroadcastSnapshot(snap domain.Snapshot) {
	b, err := json.Marshal(snapshotMessage{Type: "snapshot", Snapshot: snap})
	if err != nil {
		h.log.Error("encoding snapshot", "error", err)
		return
	}
	select {
	case h.broadcast <- b:
	case <-h.quit:
	}
}

// ServeHTTP upgrades the connection and runs the session until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		ctx:  ctx,
		stop: stop,
	}
	vo := view.Options{
		DefaultWindow: h.opts.DefaultWindow,
		Location:      h.opts.Location,
		Logger:        h.log.With("session", c.id),
		OnChange:      c.publish,
	}
	c.stock = view.NewStockView(h.src, vo)
	c.corr = view.NewCorrelationView(h.src, vo)

	select {
	case h.register <- c:
	case <-h.quit:
		conn.Close()
		stop()
		return
	}

	go c.writePump()
	c.sendJSON(helloMessage{Type: "hello", Session: c.id})
	c.readPump()
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// enqueue queues a frame without blocking. It reports false when the send
// buffer is full.
func (c *Client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.hub.log.Error("encoding message", "session", c.id, "error", err)
		return
	}
	if !c.enqueue(b) {
		c.hub.log.Warn("send buffer full", "session", c.id)
	}
}

// publish is the view controllers' OnChange hook.
func (c *Client) publish(st view.State) {
	c.sendJSON(stateMessage{Type: "state", State: st})
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.stop()
		c.stock.Close()
		c.corr.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("websocket read", "session", c.id, "error", err)
			}
			return
		}
		// Each selection runs on its own goroutine so a newer one can
		// supersede a slow fetch.
		go c.handle(msg)
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
		case b := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) handle(msg clientMessage) {
	var err error
	switch msg.View {
	case view.StockViewName:
		st := c.stock.State()
		window := st.Window
		if msg.Minutes != nil {
			window = domain.Window(*msg.Minutes)
		}
		ticker := domain.Ticker(msg.Ticker)
		if st.Stocks == nil {
			_, err = c.stock.Load(c.ctx, ticker, window)
			break
		}
		if ticker == "" {
			ticker = st.Ticker
		}
		_, err = c.stock.Select(c.ctx, ticker, window)
	case view.CorrelationViewName:
		st := c.corr.State()
		window := st.Window
		if msg.Minutes != nil {
			window = domain.Window(*msg.Minutes)
		}
		if st.Stocks == nil {
			_, err = c.corr.Load(c.ctx, window)
			break
		}
		_, err = c.corr.SetWindow(c.ctx, window)
	default:
		c.sendJSON(errorMessage{Type: "error", Error: "unknown view " + msg.View})
		return
	}

	switch {
	case err == nil, errors.Is(err, view.ErrStale), errors.Is(err, gather.ErrFetch):
		// Fetch failures are already part of the published state.
	case errors.Is(err, view.ErrInvalidWindow), errors.Is(err, gather.ErrUnknownTicker):
		c.sendJSON(errorMessage{Type: "error", Error: err.Error()})
	case c.ctx.Err() != nil:
	default:
		c.hub.log.Warn("view refresh failed", "session", c.id, "view", msg.View, "error", err)
	}
}
