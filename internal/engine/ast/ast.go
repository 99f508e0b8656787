// Package ast holds the minimal queryable node model produced by the
// compilation oracle and traversed by the visitor. The real Groovy AST stays
// inside the oracle; this model carries only what downstream analysis and
// dependency derivation need.
package ast

type Position struct {
	Line   int // 1-based
	Column int // 1-based
}

type Import struct {
	// Class is the imported class path, e.g. "com.example.util.Strings".
	// Star imports keep the trailing ".*".
	Class    string
	Location Position
}

type ClassDecl struct {
	Name       string
	Superclass string
	Interfaces []string
	Location   Position
}

type Reference struct {
	// Name is the referenced type name as written, simple or qualified.
	Name     string
	Location Position
}

// SourceUnit is the per-file result of a compilation pass.
type SourceUnit struct {
	Path       string
	Package    string
	Imports    []Import
	Classes    []ClassDecl
	References []Reference
}

// DeclaredNames returns the fully qualified names declared by the unit.
func (u *SourceUnit) DeclaredNames() []string {
	names := make([]string, 0, len(u.Classes))
	for _, c := range u.Classes {
		names = append(names, Qualify(u.Package, c.Name))
	}
	return names
}

// Qualify joins a package and a simple name; an empty package yields the
// simple name unchanged.
func Qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func Clone(u *SourceUnit) *SourceUnit {
	if u == nil {
		return nil
	}
	c := *u
	c.Imports = append([]Import(nil), u.Imports...)
	c.Classes = append([]ClassDecl(nil), u.Classes...)
	for i := range c.Classes {
		if len(c.Classes[i].Interfaces) == 0 {
			continue
		}
		c.Classes[i].Interfaces = append([]string(nil), u.Classes[i].Interfaces...)
	}
	c.References = append([]Reference(nil), u.References...)
	return &c
}
