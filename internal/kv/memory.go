package kv

import (
	"context"
	"strings"
	"sync"
)

// Memory is a process-local Store. A single mutex serializes every
// operation, which is what makes DequeueFront atomic.
type Memory struct {
	mu      sync.Mutex
	records map[string]map[string]string
	queues  map[string][]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]map[string]string),
		queues:  make(map[string][]string),
	}
}

// Put implements Store.Put.
func (m *Memory) Put(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		rec = make(map[string]string, len(fields))
		m.records[key] = rec
	}
	for k, v := range fields {
		rec[k] = v
	}
	return nil
}

// GetAll implements Store.GetAll. The returned map is a copy.
func (m *Memory) GetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[key]
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

// DequeueFront implements Store.DequeueFront.
func (m *Memory) DequeueFront(ctx context.Context, queueKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[queueKey]
	if len(q) == 0 {
		return "", ErrEmpty
	}
	head := q[0]
	if len(q) == 1 {
		delete(m.queues, queueKey)
	} else {
		m.queues[queueKey] = q[1:]
	}
	return head, nil
}

// EnqueueBack implements Store.EnqueueBack.
func (m *Memory) EnqueueBack(ctx context.Context, queueKey string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues[queueKey] = append(m.queues[queueKey], value)
	return nil
}

// ScanKeys implements Store.ScanKeys.
func (m *Memory) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len implements Store.Len.
func (m *Memory) Len(ctx context.Context, queueKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.queues[queueKey])), nil
}

// Ping implements Store.Ping.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store.Close.
func (m *Memory) Close() error {
	return nil
}
