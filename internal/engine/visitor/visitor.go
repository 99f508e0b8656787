// Package visitor builds the queryable index over a compiled unit: the
// symbol table and reference resolution that downstream features (hover,
// references, rename) read, and the per-source dependency sets the
// dependency graph is rebuilt from. An Index is immutable once built and is
// swapped into a scope wholesale.
package visitor

import (
	"strings"

	"gls/internal/engine/ast"
	"gls/internal/shared/util"
)

type Location struct {
	Path     string
	Position ast.Position
}

type Index struct {
	units        map[string]*ast.SourceUnit
	declarations map[string]Location        // fully qualified name -> declaring location
	dependencies map[string]map[string]bool // path -> referenced paths
}

// Build traverses compiled source units into a fresh index. Reference
// resolution is workspace-internal: names resolving to no declared class are
// assumed to come from the classpath and produce no edge.
func Build(units []*ast.SourceUnit) *Index {
	idx := &Index{
		units:        make(map[string]*ast.SourceUnit, len(units)),
		declarations: make(map[string]Location),
		dependencies: make(map[string]map[string]bool, len(units)),
	}

	for _, u := range units {
		if u == nil {
			continue
		}
		idx.units[u.Path] = ast.Clone(u)
		for _, c := range u.Classes {
			idx.declarations[ast.Qualify(u.Package, c.Name)] = Location{Path: u.Path, Position: c.Location}
		}
	}

	for _, u := range idx.units {
		deps := make(map[string]bool)
		addDep := func(path string) {
			if path != "" && path != u.Path {
				deps[path] = true
			}
		}

		for _, imp := range u.Imports {
			if strings.HasSuffix(imp.Class, ".*") {
				continue // star imports resolve per reference
			}
			if loc, ok := idx.declarations[imp.Class]; ok {
				addDep(loc.Path)
			}
		}
		for _, ref := range u.References {
			if loc, ok := idx.resolve(u, ref.Name); ok {
				addDep(loc.Path)
			}
		}
		for _, c := range u.Classes {
			if c.Superclass != "" {
				if loc, ok := idx.resolve(u, c.Superclass); ok {
					addDep(loc.Path)
				}
			}
			for _, iface := range c.Interfaces {
				if loc, ok := idx.resolve(u, iface); ok {
					addDep(loc.Path)
				}
			}
		}
		idx.dependencies[u.Path] = deps
	}

	return idx
}

// resolve maps a type name as written in unit u to its declaring location.
// Qualified names match directly; simple names try the unit's own package,
// explicit imports, then star imports.
func (idx *Index) resolve(u *ast.SourceUnit, name string) (Location, bool) {
	if name == "" {
		return Location{}, false
	}
	if strings.Contains(name, ".") {
		loc, ok := idx.declarations[name]
		return loc, ok
	}

	if loc, ok := idx.declarations[ast.Qualify(u.Package, name)]; ok {
		return loc, true
	}
	for _, imp := range u.Imports {
		if strings.HasSuffix(imp.Class, ".*") {
			pkg := strings.TrimSuffix(imp.Class, ".*")
			if loc, ok := idx.declarations[ast.Qualify(pkg, name)]; ok {
				return loc, true
			}
			continue
		}
		if simpleName(imp.Class) == name {
			if loc, ok := idx.declarations[imp.Class]; ok {
				return loc, true
			}
		}
	}
	// Default-package fallback for rootless scripts.
	loc, ok := idx.declarations[name]
	return loc, ok
}

func simpleName(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// Dependencies returns the workspace paths the source at path references.
func (idx *Index) Dependencies(path string) []string {
	return util.SortedSet(idx.dependencies[path])
}

// DefinitionOf resolves a fully qualified class name to its declaration.
func (idx *Index) DefinitionOf(name string) (Location, bool) {
	loc, ok := idx.declarations[name]
	return loc, ok
}

// ReferencesTo lists every location referencing the named class, for the
// references/rename features.
func (idx *Index) ReferencesTo(name string) []Location {
	target, ok := idx.declarations[name]
	if !ok {
		return nil
	}

	var out []Location
	for _, path := range util.SortedStringKeys(idx.units) {
		u := idx.units[path]
		for _, ref := range u.References {
			if loc, ok := idx.resolve(u, ref.Name); ok && loc == target {
				out = append(out, Location{Path: u.Path, Position: ref.Location})
			}
		}
	}
	return out
}

// Unit returns the indexed source unit for path.
func (idx *Index) Unit(path string) (*ast.SourceUnit, bool) {
	u, ok := idx.units[path]
	if !ok {
		return nil, false
	}
	return ast.Clone(u), true
}

func (idx *Index) Paths() []string {
	return util.SortedStringKeys(idx.units)
}

func (idx *Index) SourceCount() int {
	if idx == nil {
		return 0
	}
	return len(idx.units)
}

// Merge returns a new index where units from next replace same-path units in
// idx and units listed in removed disappear. Used for partial recompilation:
// untouched sources keep their previous indexed form, deleted sources drop
// out, and cross-unit resolution is recomputed over the combined set.
func Merge(idx *Index, next *Index, removed []string) *Index {
	removedSet := make(map[string]bool, len(removed))
	for _, path := range removed {
		removedSet[path] = true
	}

	var combined []*ast.SourceUnit
	if idx != nil {
		for _, path := range util.SortedStringKeys(idx.units) {
			if removedSet[path] {
				continue
			}
			if next != nil {
				if _, replaced := next.units[path]; replaced {
					continue
				}
			}
			combined = append(combined, idx.units[path])
		}
	}
	if next != nil {
		for _, path := range util.SortedStringKeys(next.units) {
			if removedSet[path] {
				continue
			}
			combined = append(combined, next.units[path])
		}
	}
	return Build(combined)
}
