package router

import (
	"context"
	"sync"
	"testing"

	"gls/internal/core/compile"
	"gls/internal/core/ports"
	"gls/internal/core/scope"
	"gls/internal/core/tracker"
	"gls/internal/engine/oracle"
	"gls/internal/engine/scan"
)

type discardSink struct{}

func (discardSink) Publish(string, []ports.Diagnostic) {}

type recordingListener struct {
	mu    sync.Mutex
	calls [][2]string
}

func (l *recordingListener) ClasspathFileChanged(root, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, [2]string{root, path})
}

type fixture struct {
	router   *Router
	manager  *scope.Manager
	tracker  *tracker.Memory
	listener *recordingListener
}

func newFixture(opts Options) *fixture {
	tr := tracker.NewMemory()
	scans := scan.NewCache(func(ctx context.Context, entries []string) ([]string, error) {
		return nil, nil
	})
	svc := compile.NewService(oracle.NewGroovy(), tr, discardSink{}, scans, compile.Options{})
	mgr := scope.NewManager()
	listener := &recordingListener{}
	return &fixture{
		router:   New(mgr, svc, tr, listener, opts),
		manager:  mgr,
		tracker:  tr,
		listener: listener,
	}
}

func TestIsBuildOutput(t *testing.T) {
	f := newFixture(Options{ExtraBuildOutputDirs: []string{"generated"}})

	cases := []struct {
		name string
		path string
		root string
		want bool
	}{
		{"gradle output", "/ws/app/build/classes/A.class", "/ws/app", true},
		{"maven output", "/ws/app/target/A.class", "/ws/app", true},
		{"gradle cache", "/ws/app/.gradle/x.lock", "/ws/app", true},
		{"configured extra", "/ws/app/generated/A.groovy", "/ws/app", true},
		{"regular source", "/ws/app/src/A.groovy", "/ws/app", false},
		{"nested build dir", "/ws/app/src/build/A.groovy", "/ws/app", false},
		{"root itself", "/ws/app", "/ws/app", false},
		{"outside root", "/elsewhere/build/A.class", "/ws/app", false},
		{"project named build", "/ws/build", "/ws/build", false},
		{"source in build-named project", "/ws/build/src/A.groovy", "/ws/build", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.router.IsBuildOutput(tc.path, tc.root); got != tc.want {
				t.Fatalf("IsBuildOutput(%q, %q) = %v, want %v", tc.path, tc.root, got, tc.want)
			}
		})
	}
}

func TestHandleChanges_GroovyTriggersCompile(t *testing.T) {
	f := newFixture(Options{})
	f.manager.UpdateProjectClasspath("/ws/app", nil)
	f.tracker.SetContents("/ws/app/src/A.groovy", "class A {}\n")
	f.tracker.ClearAllChanged()

	f.router.HandleChanges(context.Background(), []string{"/ws/app/src/A.groovy"})

	sc, _ := f.manager.ScopeFor("/ws/app")
	if !sc.Compiled() {
		t.Fatal("groovy change in a resolved scope must compile")
	}
	if _, ok := sc.Index().Unit("/ws/app/src/A.groovy"); !ok {
		t.Fatal("changed source missing from index")
	}
	if len(f.tracker.ChangedIDs()) != 0 {
		t.Fatalf("processed change not cleared: %v", f.tracker.ChangedIDs())
	}
}

func TestHandleChanges_BuildOutputIsDropped(t *testing.T) {
	f := newFixture(Options{})
	f.manager.UpdateProjectClasspath("/ws/app", nil)

	f.router.HandleChanges(context.Background(), []string{"/ws/app/build/gen/A.groovy"})

	if len(f.tracker.ChangedIDs()) != 0 {
		t.Fatal("build output must not record a change")
	}
	sc, _ := f.manager.ScopeFor("/ws/app")
	if sc.Compiled() {
		t.Fatal("build output must not trigger compilation")
	}
}

func TestHandleChanges_UnresolvedScopeDefersButRecords(t *testing.T) {
	f := newFixture(Options{})
	f.manager.RegisterDiscoveredProjects([]string{"/ws/app"})

	f.router.HandleChanges(context.Background(), []string{"/ws/app/src/A.groovy"})

	if !f.tracker.ChangedIDs()["/ws/app/src/A.groovy"] {
		t.Fatal("deferred change must stay recorded")
	}
	sc, _ := f.manager.ScopeFor("/ws/app")
	if sc.Compiled() {
		t.Fatal("unresolved classpath must gate compilation")
	}
}

func TestHandleChanges_DescriptorInvalidatesClasspath(t *testing.T) {
	f := newFixture(Options{})
	f.manager.UpdateProjectClasspath("/ws/app", []string{"/libs/a.jar"})

	f.router.HandleChanges(context.Background(), []string{
		"/ws/app/build.gradle",
		"/ws/app/src/A.groovy", // same batch: recorded, not compiled
	})

	sc, _ := f.manager.ScopeFor("/ws/app")
	if sc.ClasspathResolved() {
		t.Fatal("descriptor change must drop classpath resolution")
	}
	if sc.Compiled() {
		t.Fatal("descriptor batch must not compile against the stale classpath")
	}
	if !f.tracker.ChangedIDs()["/ws/app/src/A.groovy"] {
		t.Fatal("source change in the descriptor batch must stay recorded")
	}
	f.listener.mu.Lock()
	defer f.listener.mu.Unlock()
	if len(f.listener.calls) != 1 || f.listener.calls[0] != [2]string{"/ws/app", "/ws/app/build.gradle"} {
		t.Fatalf("unexpected listener calls: %v", f.listener.calls)
	}
}

func TestHandleChanges_JavaForcesFullPass(t *testing.T) {
	f := newFixture(Options{})
	f.manager.UpdateProjectClasspath("/ws/app", nil)
	f.tracker.SetContents("/ws/app/src/A.groovy", "class A {}\n")

	f.router.HandleChanges(context.Background(), []string{"/ws/app/src/Helper.java"})

	sc, _ := f.manager.ScopeFor("/ws/app")
	if !sc.Compiled() {
		t.Fatal("java change must force a full pass")
	}
}

func TestHandleChanges_UnmatchedPathFallsToDefaultScope(t *testing.T) {
	f := newFixture(Options{})
	f.manager.UpdateProjectClasspath("/ws/app", nil)
	f.tracker.SetContents("/tmp/Scratch.groovy", "class Scratch {}\n")

	f.router.HandleChanges(context.Background(), []string{"/tmp/Scratch.groovy"})

	def := f.manager.Default()
	if !def.Compiled() {
		t.Fatal("unmatched source must compile in the default scope")
	}
	if _, ok := def.Index().Unit("/tmp/Scratch.groovy"); !ok {
		t.Fatal("scratch file missing from default-scope index")
	}
}

func TestHandleChanges_RateLimitDefers(t *testing.T) {
	f := newFixture(Options{CompileRate: 0.001, CompileBurst: 1})
	f.manager.UpdateProjectClasspath("/ws/app", nil)
	f.tracker.SetContents("/ws/app/src/A.groovy", "class A {}\n")

	// First trigger consumes the burst.
	f.router.HandleChanges(context.Background(), []string{"/ws/app/src/A.groovy"})

	f.tracker.SetContents("/ws/app/src/A.groovy", "class A { int x }\n")
	f.router.HandleChanges(context.Background(), []string{"/ws/app/src/A.groovy"})

	if !f.tracker.ChangedIDs()["/ws/app/src/A.groovy"] {
		t.Fatal("rate-limited change must stay recorded for a later pass")
	}
}
