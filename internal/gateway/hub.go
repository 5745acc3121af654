// Package gateway fans candle updates out to WebSocket clients. It bridges
// the Redis Pub/Sub channels the aggregator publishes on to per-client send
// queues with per-mint/interval subscription filters.
package gateway

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// candlePattern matches every channel the aggregator publishes on.
const candlePattern = "pub:candle:*"

// Hub manages WebSocket clients and the Redis Pub/Sub bridge.
type Hub struct {
	rdb *goredis.Client

	mu      sync.RWMutex
	clients map[*Client]bool

	// Per-channel monotonic sequence numbers for client-side gap detection.
	channelSeqs map[string]int64

	// Metrics hooks (optional, set externally)
	OnBroadcast func()
	OnSlowDrop  func()
}

// NewHub creates a hub over the given Redis client.
func NewHub(rdb *goredis.Client) *Hub {
	return &Hub{
		rdb:         rdb,
		clients:     make(map[*Client]bool),
		channelSeqs: make(map[string]int64),
	}
}

// Run subscribes to the candle Pub/Sub pattern and routes every message to
// the connected clients. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, candlePattern)
	defer pubsub.Close()

	log.Printf("[gateway] subscribed to %s", candlePattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

// broadcast wraps the payload in an envelope with the channel name, receive
// time, and per-channel sequence number, then sends it to every subscribed
// client. A full client queue drops the frame for that client only.
func (h *Hub) broadcast(channel string, data []byte) {
	h.mu.Lock()
	h.channelSeqs[channel]++
	seq := h.channelSeqs[channel]
	h.mu.Unlock()

	now := time.Now().UTC()
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	if h.OnBroadcast != nil {
		h.OnBroadcast()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			if h.OnSlowDrop != nil {
				h.OnSlowDrop()
			}
		}
	}
}

// Register attaches an upgraded WebSocket connection as a new client and
// starts its pumps. The client starts with no filters: it receives every
// candle update until it sends a subscribe frame.
func (h *Hub) Register(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client disconnected (%d total)", count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
