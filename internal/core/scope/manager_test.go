package scope

import (
	"reflect"
	"testing"
)

func TestManager_ResolveLongestPrefix(t *testing.T) {
	m := NewManager()
	m.RegisterDiscoveredProjects([]string{"/ws/app", "/ws/app/submodule", "/ws/lib"})

	s := m.Resolve("/ws/app/submodule/src/A.groovy")
	if root, _ := s.Root(); root != "/ws/app/submodule" {
		t.Fatalf("expected longest root match, got %q", root)
	}

	s = m.Resolve("/ws/app/src/B.groovy")
	if root, _ := s.Root(); root != "/ws/app" {
		t.Fatalf("expected ws/app, got %q", root)
	}
}

func TestManager_UnmatchedFallsToDefaultScope(t *testing.T) {
	m := NewManager()
	m.RegisterDiscoveredProjects([]string{"/ws/app"})

	s := m.Resolve("/tmp/scratch/Scratch.groovy")
	if _, ok := s.Root(); ok {
		t.Fatal("expected the rootless default scope")
	}
	if s != m.Default() {
		t.Fatal("expected the same default scope instance")
	}
	// The default scope has no classpath to resolve; it never gates.
	if !s.ClasspathResolved() {
		t.Fatal("default scope must be classpath-resolved from birth")
	}
}

func TestManager_RegistrationIsIdempotent(t *testing.T) {
	m := NewManager()
	m.RegisterDiscoveredProjects([]string{"/ws/app"})
	first, _ := m.ScopeFor("/ws/app")
	first.UpdateClasspathEntries([]string{"/libs/a.jar"})

	m.RegisterDiscoveredProjects([]string{"/ws/app", "/ws/app"})
	second, _ := m.ScopeFor("/ws/app")
	if first != second {
		t.Fatal("re-registration replaced an existing scope")
	}
	if !second.ClasspathResolved() {
		t.Fatal("re-registration disturbed scope state")
	}
}

func TestManager_UpdateProjectClasspathCreatesScope(t *testing.T) {
	m := NewManager()
	s := m.UpdateProjectClasspath("/ws/new", []string{"/libs/a.jar"})

	if !s.ClasspathResolved() {
		t.Fatal("expected classpath-resolved after update")
	}
	if got := s.ClasspathEntries(); !reflect.DeepEqual(got, []string{"/libs/a.jar"}) {
		t.Fatalf("unexpected entries: %v", got)
	}
	if found, ok := m.ScopeFor("/ws/new"); !ok || found != s {
		t.Fatal("scope not registered under its root")
	}

	// Empty entries are a valid "no external dependencies" configuration.
	s2 := m.UpdateProjectClasspath("/ws/new", nil)
	if s2 != s {
		t.Fatal("classpath update created a duplicate scope")
	}
	if len(s2.ClasspathEntries()) != 0 {
		t.Fatal("expected empty classpath entries")
	}
	if !s2.ClasspathResolved() {
		t.Fatal("empty classpath must still count as resolved")
	}
}

func TestManager_RootsSortedAndAll(t *testing.T) {
	m := NewManager()
	m.RegisterDiscoveredProjects([]string{"/ws/b", "/ws/a"})
	if got := m.Roots(); !reflect.DeepEqual(got, []string{"/ws/a", "/ws/b"}) {
		t.Fatalf("unexpected roots: %v", got)
	}
	_ = m.Default()
	if got := len(m.All()); got != 3 {
		t.Fatalf("expected 3 scopes including default, got %d", got)
	}
}
