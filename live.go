/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	liveSendBuffer = 8
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

// BoardMessage is pushed to every connected browser whenever the board
// changes, and once on connect.
type BoardMessage struct {
	Type     string    `json:"type"` // "bookings"
	Bookings []Booking `json:"bookings"`
}

type liveClient struct {
	id   string
	conn *websocket.Conn
	send chan BoardMessage
}

// liveHub fans board updates out to websocket subscribers. A subscriber
// that cannot keep up is dropped rather than stalling a claim.
type liveHub struct {
	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

func newLiveHub() *liveHub {
	return &liveHub{
		clients: make(map[*liveClient]struct{}),
	}
}

func (h *liveHub) register(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
}

func (h *liveHub) unregister(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *liveHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *liveHub) broadcast(bookings []Booking) {
	msg := BoardMessage{Type: "bookings", Bookings: bookings}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// closeAll disconnects every subscriber, used on shutdown.
func (h *liveHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveLive(cfg *Config, svc *bookingService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "LIVE: Upgrade failed for %s: %v", realIP(r), err)

			return
		}

		client := &liveClient{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan BoardMessage, liveSendBuffer),
		}

		if err := svc.subscribe(r.Context(), client); err != nil {
			errorf("LIVE: initial board for %s: %v", realIP(r), err)

			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "internal server error"),
				time.Now().Add(liveWriteWait))
			_ = conn.Close()

			return
		}

		logf(cfg, "LIVE: Subscriber %s connected from %s (%d total)", client.id, realIP(r), svc.live.count())

		go client.writePump()
		client.readPump(svc.live)

		logf(cfg, "LIVE: Subscriber %s disconnected", client.id)
	}
}

// readPump only exists to notice the peer going away; clients never send
// anything meaningful.
func (c *liveClient) readPump(h *liveHub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
