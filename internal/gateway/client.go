package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"candlefeed/internal/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	maxFrameSize = 4096
)

// Client is one connected WebSocket consumer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu   sync.RWMutex
	subs map[string]bool // channel name -> subscribed; empty means all
}

// subscribeFrame is the only client->server message the gateway accepts.
type subscribeFrame struct {
	Action   string `json:"action"` // "subscribe" | "unsubscribe"
	Mint     string `json:"mint"`
	Interval string `json:"interval"`
}

// matchesChannel reports whether this client should receive a message on the
// given channel. A client with no explicit subscriptions receives everything.
func (c *Client) matchesChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[channel]
}

// readPump consumes subscribe/unsubscribe frames until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame subscribeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[gateway] bad client frame: %v", err)
			continue
		}
		c.applyFrame(frame)
	}
}

func (c *Client) applyFrame(frame subscribeFrame) {
	iv, ok := model.ParseInterval(frame.Interval)
	if !ok || frame.Mint == "" {
		return
	}
	channel := "pub:candle:" + string(iv) + ":" + frame.Mint

	c.mu.Lock()
	defer c.mu.Unlock()
	switch strings.ToLower(frame.Action) {
	case "subscribe":
		c.subs[channel] = true
	case "unsubscribe":
		delete(c.subs, channel)
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings.
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
