package graph

import (
	"sync"

	"gls/internal/shared/util"
)

// Graph maps each source id to the set of source ids its last successful
// compilation observed as dependencies, with a maintained reverse index for
// impacted-by queries. Mutual dependencies between two sources are legal;
// closure computation uses an explicit visited set.
type Graph struct {
	mu         sync.RWMutex
	deps       map[string]map[string]bool // from -> to
	dependents map[string]map[string]bool // to -> from
}

func New() *Graph {
	return &Graph{
		deps:       make(map[string]map[string]bool),
		dependents: make(map[string]map[string]bool),
	}
}

// Update replaces the dependency set recorded for id. Prior edges from id are
// removed from the reverse index first so stale dependents never linger.
func (g *Graph) Update(id string, deps []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgesLocked(id)

	set := make(map[string]bool, len(deps))
	for _, dep := range deps {
		if dep == "" || dep == id {
			continue
		}
		set[dep] = true
		if g.dependents[dep] == nil {
			g.dependents[dep] = make(map[string]bool)
		}
		g.dependents[dep][id] = true
	}
	g.deps[id] = set
}

// Remove drops id as a dependency holder. Edges pointing at id from other
// sources stay; those sources still depend on the (now missing) id.
func (g *Graph) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgesLocked(id)
	delete(g.deps, id)
}

func (g *Graph) removeEdgesLocked(id string) {
	for dep := range g.deps[id] {
		if g.dependents[dep] != nil {
			delete(g.dependents[dep], id)
			if len(g.dependents[dep]) == 0 {
				delete(g.dependents, dep)
			}
		}
	}
}

// Dependencies returns the recorded dependency set for id, sorted.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return util.SortedSet(g.deps[id])
}

// ImpactedBy returns the sources whose dependency set contains id, sorted.
func (g *Graph) ImpactedBy(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return util.SortedSet(g.dependents[id])
}

// ImpactClosure returns the reflexive-transitive set of sources affected by a
// change to id: id itself, everything depending on id, everything depending
// on those, and so on. Breadth-first with a seen set, so dependency cycles
// terminate.
func (g *Graph) ImpactClosure(id string) map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	closure := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for next := range g.dependents[curr] {
			if closure[next] {
				continue
			}
			closure[next] = true
			queue = append(queue, next)
		}
	}
	return closure
}

// Contains reports whether id has a recorded dependency set.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.deps[id]
	return ok
}

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.deps)
}

// Sources returns all ids holding a dependency set, sorted.
func (g *Graph) Sources() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return util.SortedStringKeys(g.deps)
}
