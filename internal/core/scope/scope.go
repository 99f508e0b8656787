// Package scope holds per-project compilation state and the manager that
// routes file identifiers to their owning scope.
package scope

import (
	"sync"

	"gls/internal/core/ports"
	"gls/internal/engine/graph"
	"gls/internal/engine/scan"
	"gls/internal/engine/visitor"
)

// State labels the scope lifecycle for logs and telemetry.
type State string

const (
	StateUninitialized     State = "uninitialized"
	StateClasspathPending  State = "classpath_pending"
	StateClasspathResolved State = "classpath_resolved"
	StateCompiled          State = "compiled"
	StateStale             State = "stale"
)

// Snapshot is the previous successfully-compiled context, kept only for
// diffing until the next successful pass replaces it.
type Snapshot struct {
	Unit  *ports.Unit
	Index *visitor.Index
}

// Scope is the unit of compilation isolation: all mutable state for one
// project, or for the catch-all default scope when root is empty.
//
// The compiled unit and AST index are replaced wholesale: a new pair is built
// off to the side and swapped in under the write guard, so readers never
// observe a half-updated pair. compileMu serializes compilation passes; at
// most one per scope is ever in flight.
type Scope struct {
	root string

	mu                sync.RWMutex
	compiled          bool
	classpathResolved bool
	classpathEntries  []string
	unit              *ports.Unit
	index             *visitor.Index
	deps              *graph.Graph
	previous          *Snapshot
	scanResult        *scan.Result

	compileMu sync.Mutex
}

// New creates a scope for root. An empty root creates the default scope; the
// default scope never gates on classpath resolution because it has no build
// descriptor to resolve one from.
func New(root string) *Scope {
	return &Scope{
		root:              root,
		classpathResolved: root == "",
		deps:              graph.New(),
	}
}

// Root returns the project root and whether one exists.
func (s *Scope) Root() (string, bool) {
	return s.root, s.root != ""
}

// BeginCompile acquires the exclusive compile guard for the scope.
func (s *Scope) BeginCompile() { s.compileMu.Lock() }

// EndCompile releases the compile guard.
func (s *Scope) EndCompile() { s.compileMu.Unlock() }

func (s *Scope) Compiled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compiled
}

// MarkStale clears the compiled flag without discarding the last-good unit
// and index: queries keep the best available AST until the next pass.
func (s *Scope) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compiled = false
}

func (s *Scope) ClasspathResolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classpathResolved
}

// ResetClasspathResolved forces the classpath-unresolved state, e.g. after a
// build descriptor change invalidates the previous resolution.
func (s *Scope) ResetClasspathResolved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classpathResolved = false
}

// UpdateClasspathEntries reconfigures the dependent-library locations. A nil
// or empty list means "no external dependencies" and is valid. The scope is
// marked classpath-resolved; the compiled flag drops because previous results
// were produced against the old classpath.
func (s *Scope) UpdateClasspathEntries(entries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classpathEntries = append([]string(nil), entries...)
	s.classpathResolved = true
	s.compiled = false
}

func (s *Scope) ClasspathEntries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.classpathEntries...)
}

func (s *Scope) Unit() *ports.Unit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unit
}

// SetUnit installs a unit built off to the side, without touching the index:
// used between unit construction and the compile pass.
func (s *Scope) SetUnit(unit *ports.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unit = unit
}

func (s *Scope) Index() *visitor.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Graph returns the scope's dependency graph. The graph reflects the last
// successful compilation only; failed passes leave it untouched.
func (s *Scope) Graph() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps
}

// CommitCompiled swaps in the unit/index pair produced by one successful
// pass, replaces the dependency graph, snapshots the prior context for
// diffing, and sets the compiled flag, all in one transition under the
// write guard.
func (s *Scope) CommitCompiled(unit *ports.Unit, index *visitor.Index, deps *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled && s.unit != nil && s.index != nil {
		s.previous = &Snapshot{Unit: s.unit, Index: s.index}
	} else {
		s.previous = nil
	}
	s.unit = unit
	s.index = index
	if deps != nil {
		s.deps = deps
	}
	s.compiled = true
}

// Previous returns the snapshot of the prior successful compile, if any.
func (s *Scope) Previous() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// DropPrevious discards the diffing snapshot.
func (s *Scope) DropPrevious() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = nil
}

func (s *Scope) ScanResult() *scan.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanResult
}

// SwapScanResult installs the shared scan result for the current classpath
// and returns the one previously held so the caller can release it.
func (s *Scope) SwapScanResult(result *scan.Result) *scan.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.scanResult
	s.scanResult = result
	return prev
}

// State derives the lifecycle label from the flags.
func (s *Scope) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case !s.classpathResolved && s.unit == nil && s.index == nil:
		if len(s.classpathEntries) == 0 && s.root != "" {
			return StateClasspathPending
		}
		return StateUninitialized
	case !s.classpathResolved:
		return StateClasspathPending
	case s.compiled:
		return StateCompiled
	case s.unit != nil || s.index != nil:
		return StateStale
	default:
		return StateClasspathResolved
	}
}

// Status snapshots the flags for external telemetry.
func (s *Scope) Status(pendingChanges int) ports.ScopeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ports.ScopeStatus{
		Root:              s.root,
		Compiled:          s.compiled,
		ClasspathResolved: s.classpathResolved,
		SourceCount:       s.index.SourceCount(),
		PendingChanges:    pendingChanges,
	}
}
