package gateway

import (
	"encoding/json"
	"testing"

	"candlefeed/internal/model"
)

// newFakeClient attaches a client to the hub without a real socket. broadcast
// only touches matchesChannel and the send queue, so no pumps are needed.
func newFakeClient(h *Hub, queue int) *Client {
	c := &Client{
		send: make(chan []byte, queue),
		hub:  h,
		subs: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

type envelope struct {
	Channel string       `json:"channel"`
	Data    model.Update `json:"data"`
	Ts      string       `json:"ts"`
	Seq     int64        `json:"seq"`
}

func recv(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad envelope %s: %v", raw, err)
		}
		return env
	default:
		t.Fatal("no frame queued")
	}
	return envelope{}
}

func TestBroadcast_Envelope(t *testing.T) {
	h := NewHub(nil)
	c := newFakeClient(h, 4)

	u := model.Update{Mint: "mintA", Interval: model.Interval1s, Close: 1.5, IsFinal: true}
	h.broadcast(u.Channel(), u.JSON())

	env := recv(t, c)
	if env.Channel != "pub:candle:1s:mintA" {
		t.Errorf("channel = %q", env.Channel)
	}
	if env.Seq != 1 {
		t.Errorf("seq = %d, want 1", env.Seq)
	}
	if env.Ts == "" {
		t.Error("envelope missing ts")
	}
	if env.Data.Close != 1.5 || !env.Data.IsFinal {
		t.Errorf("payload mangled: %+v", env.Data)
	}
}

func TestBroadcast_SeqPerChannel(t *testing.T) {
	h := NewHub(nil)
	c := newFakeClient(h, 8)

	a := model.Update{Mint: "mintA", Interval: model.Interval1s}
	b := model.Update{Mint: "mintB", Interval: model.Interval1s}
	h.broadcast(a.Channel(), a.JSON())
	h.broadcast(a.Channel(), a.JSON())
	h.broadcast(b.Channel(), b.JSON())

	if env := recv(t, c); env.Seq != 1 {
		t.Errorf("first mintA seq = %d", env.Seq)
	}
	if env := recv(t, c); env.Seq != 2 {
		t.Errorf("second mintA seq = %d", env.Seq)
	}
	// Independent counter for the other channel.
	if env := recv(t, c); env.Seq != 1 {
		t.Errorf("first mintB seq = %d", env.Seq)
	}
}

func TestBroadcast_SubscriptionFilter(t *testing.T) {
	h := NewHub(nil)
	all := newFakeClient(h, 4)
	filtered := newFakeClient(h, 4)
	filtered.applyFrame(subscribeFrame{Action: "subscribe", Mint: "mintA", Interval: "1m"})

	onTarget := model.Update{Mint: "mintA", Interval: model.Interval1m}
	offTarget := model.Update{Mint: "mintB", Interval: model.Interval1m}
	h.broadcast(onTarget.Channel(), onTarget.JSON())
	h.broadcast(offTarget.Channel(), offTarget.JSON())

	if got := len(all.send); got != 2 {
		t.Errorf("unfiltered client queued %d frames, want 2", got)
	}
	if got := len(filtered.send); got != 1 {
		t.Errorf("filtered client queued %d frames, want 1", got)
	}

	env := recv(t, filtered)
	if env.Data.Mint != "mintA" {
		t.Errorf("filtered client got %s", env.Data.Mint)
	}
}

func TestBroadcast_SlowClientDropped(t *testing.T) {
	h := NewHub(nil)
	c := newFakeClient(h, 1)

	drops := 0
	h.OnSlowDrop = func() { drops++ }

	u := model.Update{Mint: "mintA", Interval: model.Interval1s}
	h.broadcast(u.Channel(), u.JSON())
	h.broadcast(u.Channel(), u.JSON()) // queue full, dropped for this client

	if drops != 1 {
		t.Errorf("drops = %d, want 1", drops)
	}
	if got := len(c.send); got != 1 {
		t.Errorf("queued frames = %d, want 1", got)
	}
}

func TestApplyFrame_Unsubscribe(t *testing.T) {
	h := NewHub(nil)
	c := newFakeClient(h, 4)

	c.applyFrame(subscribeFrame{Action: "subscribe", Mint: "mintA", Interval: "1m"})
	c.applyFrame(subscribeFrame{Action: "unsubscribe", Mint: "mintA", Interval: "1m"})

	// No explicit filters left: back to receiving everything.
	if !c.matchesChannel("pub:candle:1s:anything") {
		t.Error("client with no filters must receive all channels")
	}
}

func TestApplyFrame_RejectsBadInput(t *testing.T) {
	h := NewHub(nil)
	c := newFakeClient(h, 4)

	c.applyFrame(subscribeFrame{Action: "subscribe", Mint: "", Interval: "1m"})
	c.applyFrame(subscribeFrame{Action: "subscribe", Mint: "mintA", Interval: "3m"})

	if len(c.subs) != 0 {
		t.Errorf("invalid frames created subscriptions: %v", c.subs)
	}
}
