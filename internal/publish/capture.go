package publish

import (
	"context"
	"sync"

	"candlefeed/internal/model"
)

// Capture records published updates in memory. Used in tests and as a no-op
// sink when running without Redis.
type Capture struct {
	mu      sync.Mutex
	updates []model.Update
}

// NewCapture creates an empty capture publisher.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Publish(_ context.Context, u model.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return nil
}

// Updates returns a copy of everything published so far.
func (c *Capture) Updates() []model.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Update, len(c.updates))
	copy(out, c.updates)
	return out
}

// Reset clears the captured updates.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = nil
}
