package kvstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	expiry map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string]string),
		expiry: make(map[string]time.Time),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if exp, ok := m.expiry[key]; ok && time.Now().After(exp) {
		return "", false, nil
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	if ttl > 0 {
		m.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}
