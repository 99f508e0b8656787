// Package tracker provides the in-memory content tracker used when no
// protocol-layer tracker is injected. Open-buffer contents shadow disk;
// the changed-id set drives incremental recompilation.
package tracker

import (
	"sync"

	"gls/internal/core/ports"
	"gls/internal/shared/observability"
)

type Memory struct {
	mu       sync.RWMutex
	contents map[string]string
	changed  map[string]bool
}

var _ ports.ContentTracker = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		contents: make(map[string]string),
		changed:  make(map[string]bool),
	}
}

func (m *Memory) SetContents(id, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[id] = text
	m.changed[id] = true
	observability.PendingChanges.Set(float64(len(m.changed)))
}

func (m *Memory) Contents(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.contents[id]
	return text, ok
}

// ForceChanged marks id changed without touching tracked contents. Used for
// disk-originated events where no open buffer exists.
func (m *Memory) ForceChanged(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed[id] = true
	observability.PendingChanges.Set(float64(len(m.changed)))
}

func (m *Memory) ChangedIDs() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.changed))
	for id := range m.changed {
		out[id] = true
	}
	return out
}

func (m *Memory) TrackedIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.contents))
	for id := range m.contents {
		ids = append(ids, id)
	}
	return ids
}

func (m *Memory) ClearChanged(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.changed, id)
	}
	observability.PendingChanges.Set(float64(len(m.changed)))
}

func (m *Memory) ClearAllChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = make(map[string]bool)
	observability.PendingChanges.Set(0)
}

// Drop forgets tracked contents for id (closed buffer). The changed mark
// stays so the next cycle picks the deletion up.
func (m *Memory) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contents, id)
}
