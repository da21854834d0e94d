// Package feed broadcasts matched trades to websocket subscribers. It is an
// external, read-only consumer of the trade stream: it never submits
// commands and holds no reference to any book.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"matchbook/internal/engine"
	"matchbook/internal/ingest"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientSendBuf  = 256
)

// Hub fans out TradeEvents arriving on RxTrade to every subscribed websocket
// client, filtered by the client's subscribed symbol set. A client whose send
// buffer is full is dropped rather than allowed to stall the hub.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
}

type client struct {
	conn    *websocket.Conn
	send    chan tradeMessage
	symbols map[string]struct{} // empty means all symbols
}

type tradeMessage struct {
	Symbol string       `json:"symbol"`
	Taker  engine.OrderId `json:"taker_id"`
	Maker  engine.OrderId `json:"maker_id"`
	Price  uint64       `json:"price"`
	Qty    uint64       `json:"qty"`
}

// NewHub constructs an idle Hub. Call Run to start its event loop.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drains rxTrade and fans each event out to subscribed clients until done
// is closed or rxTrade is closed. It is intended to run in its own
// goroutine for the lifetime of the process.
func (h *Hub) Run(done <-chan struct{}, rxTrade <-chan ingest.TradeEvent) {
	log.Info().Msg("feed hub starting")
	for {
		select {
		case <-done:
			log.Info().Msg("feed hub stopping")
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case ev, ok := <-rxTrade:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev ingest.TradeEvent) {
	msg := tradeMessage{
		Symbol: ev.Symbol,
		Taker:  ev.Trade.TakerID,
		Maker:  ev.Trade.MakerID,
		Price:  ev.Trade.Price,
		Qty:    ev.Trade.Qty,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if len(c.symbols) > 0 {
			if _, want := c.symbols[ev.Symbol]; !want {
				continue
			}
		}
		select {
		case c.send <- msg:
		default:
			log.Warn().Str("symbol", ev.Symbol).Msg("feed client send buffer full, dropping client")
			go func(c *client) { h.unregister <- c }(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeHTTP upgrades the request to a websocket and subscribes it to the
// trade feed. An optional comma-free repeated "symbol" query parameter
// restricts the subscription; with none given the client receives every
// symbol's trades.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("feed: websocket upgrade failed")
		return
	}

	symbols := make(map[string]struct{})
	for _, s := range r.URL.Query()["symbol"] {
		symbols[s] = struct{}{}
	}

	c := &client{conn: conn, send: make(chan tradeMessage, clientSendBuf), symbols: symbols}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
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
			data, err := json.Marshal(msg)
			if err != nil {
				log.Error().Err(err).Msg("feed: failed to marshal trade message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
