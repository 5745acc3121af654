package livestore

import (
	"context"
	"sync"

	"candlefeed/internal/model"
)

// Memory is an in-process Store used in tests and local runs without Redis.
type Memory struct {
	mu    sync.RWMutex
	slots map[string]model.Candle
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]model.Candle)}
}

func (m *Memory) Get(_ context.Context, mint string, iv model.Interval) (model.Candle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.slots[Key(iv, mint)]
	return c, ok, nil
}

func (m *Memory) Put(_ context.Context, c model.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[Key(c.Interval, c.Mint)] = c
	return nil
}
