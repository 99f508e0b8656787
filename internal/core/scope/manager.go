package scope

import (
	"log/slog"
	"sync"

	"gls/internal/core/ports"
	"gls/internal/shared/observability"
	"gls/internal/shared/util"
)

// Manager owns the set of project scopes. File identifiers resolve to the
// scope with the longest matching project root; files under no registered
// root fall to a lazily created default scope.
type Manager struct {
	mu           sync.RWMutex
	scopes       map[string]*Scope // normalized root -> scope
	defaultScope *Scope
}

func NewManager() *Manager {
	return &Manager{scopes: make(map[string]*Scope)}
}

// Resolve returns the owning scope for a file identifier.
func (m *Manager) Resolve(id string) *Scope {
	m.mu.RLock()
	best := ""
	for root := range m.scopes {
		if util.HasPathPrefix(id, root) && len(root) > len(best) {
			best = root
		}
	}
	if best != "" {
		s := m.scopes[best]
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()
	return m.Default()
}

// Default returns the catch-all scope, creating it on first use.
func (m *Manager) Default() *Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaultScope == nil {
		m.defaultScope = New("")
		m.updateGaugesLocked()
	}
	return m.defaultScope
}

// RegisterDiscoveredProjects adds scopes for newly discovered roots.
// Registration is idempotent: existing scopes with matching roots are left
// undisturbed.
func (m *Manager) RegisterDiscoveredProjects(roots []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, root := range roots {
		normalized := util.NormalizeRoot(root)
		if normalized == "" {
			continue
		}
		if _, exists := m.scopes[normalized]; exists {
			continue
		}
		m.scopes[normalized] = New(normalized)
		slog.Info("registered project scope", "root", normalized)
	}
	m.updateGaugesLocked()
}

// UpdateProjectClasspath locates or creates the scope for root and applies
// the resolved classpath entries, marking the scope classpath-resolved.
func (m *Manager) UpdateProjectClasspath(root string, entries []string) *Scope {
	normalized := util.NormalizeRoot(root)

	m.mu.Lock()
	s, ok := m.scopes[normalized]
	if !ok {
		s = New(normalized)
		m.scopes[normalized] = s
		slog.Info("registered project scope via classpath update", "root", normalized)
	}
	m.updateGaugesLocked()
	m.mu.Unlock()

	s.UpdateClasspathEntries(entries)
	return s
}

// ScopeFor returns the scope registered exactly at root, if any.
func (m *Manager) ScopeFor(root string) (*Scope, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scopes[util.NormalizeRoot(root)]
	return s, ok
}

// Roots returns the registered project roots, sorted.
func (m *Manager) Roots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return util.SortedStringKeys(m.scopes)
}

// All returns every scope, including the default scope when it exists.
func (m *Manager) All() []*Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Scope, 0, len(m.scopes)+1)
	for _, root := range util.SortedStringKeys(m.scopes) {
		out = append(out, m.scopes[root])
	}
	if m.defaultScope != nil {
		out = append(out, m.defaultScope)
	}
	return out
}

// Status aggregates scope state for the status-reporting layer.
func (m *Manager) Status(pendingByScope func(*Scope) int) ports.StatusSnapshot {
	scopes := m.All()
	snapshot := ports.StatusSnapshot{Active: len(scopes)}
	for _, s := range scopes {
		pending := 0
		if pendingByScope != nil {
			pending = pendingByScope(s)
		}
		status := s.Status(pending)
		if status.Compiled {
			snapshot.Compiled++
		}
		snapshot.Scopes = append(snapshot.Scopes, status)
	}
	observability.ScopesCompiled.Set(float64(snapshot.Compiled))
	return snapshot
}

func (m *Manager) updateGaugesLocked() {
	total := len(m.scopes)
	if m.defaultScope != nil {
		total++
	}
	observability.ScopesActive.Set(float64(total))
}
