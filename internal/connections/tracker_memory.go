package connections

import (
	"context"
	"sort"
	"sync"
)

// MemoryTracker keeps connections in a process-local map.
type MemoryTracker struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewMemoryTracker creates an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{conns: make(map[string]Connection)}
}

func (t *MemoryTracker) Connected(ctx context.Context, conn Connection) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[conn.ClientID] = conn
	return nil
}

func (t *MemoryTracker) Disconnected(ctx context.Context, clientID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, clientID)
	return nil
}

func (t *MemoryTracker) List(ctx context.Context) ([]Connection, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Connection, 0, len(t.conns))
	for _, conn := range t.conns {
		out = append(out, conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}
