// Package compile implements the compilation orchestrator: full versus
// incremental decisions, dependency-driven invalidation, syntax-only fast
// checks, and the post-compile AST traversal that refreshes each scope's
// queryable index.
package compile

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gls/internal/core/errors"
	"gls/internal/core/ports"
	"gls/internal/core/scope"
	"gls/internal/engine/graph"
	"gls/internal/engine/scan"
	"gls/internal/engine/visitor"
	"gls/internal/shared/observability"
	"gls/internal/shared/util"
)

const sourceExtension = ".groovy"

// Options tunes unit construction.
type Options struct {
	// BuildOutputDirs are directory names skipped while walking a project
	// root for sources.
	BuildOutputDirs []string
}

// Service coordinates compilation per project scope. All state transitions on
// a scope happen under its compile guard; at most one pass per scope is ever
// in flight.
type Service struct {
	oracle    ports.CompilationOracle
	tracker   ports.ContentTracker
	sink      ports.DiagnosticsSink
	scanCache *scan.Cache

	skipDirs map[string]bool

	// staging holds the outcome of the most recent Compile per scope, until
	// VisitAST consumes it. Guarded by stagingMu; the per-scope compile guard
	// already serializes the producer/consumer pair.
	stagingMu sync.Mutex
	staging   map[*scope.Scope]*stagedPass
}

type stagedPass struct {
	outcome    ports.CompileOutcome
	restricted bool
	removed    []string
}

func NewService(oracle ports.CompilationOracle, tracker ports.ContentTracker, sink ports.DiagnosticsSink, scanCache *scan.Cache, opts Options) *Service {
	skip := make(map[string]bool, len(opts.BuildOutputDirs))
	for _, dir := range opts.BuildOutputDirs {
		skip[dir] = true
	}
	return &Service{
		oracle:    oracle,
		tracker:   tracker,
		sink:      sink,
		scanCache: scanCache,
		skipDirs:  skip,
		staging:   make(map[*scope.Scope]*stagedPass),
	}
}

// EnsureCompiled performs a full compilation pass unless the scope is already
// compiled with a resolved classpath. Returns true when work was done.
// An unresolved classpath is a hard precondition: the call reports "nothing
// done" rather than attempting a doomed pass. An absent project root does not
// abort; the default scope compiles whatever the tracker holds.
func (s *Service) EnsureCompiled(ctx context.Context, sc *scope.Scope) bool {
	if !sc.ClasspathResolved() {
		root, _ := sc.Root()
		slog.Debug("compilation gated on classpath resolution", "root", root)
		return false
	}
	if sc.Compiled() {
		return false
	}

	sc.BeginCompile()
	defer sc.EndCompile()
	if sc.Compiled() { // settled while waiting on the guard
		return false
	}

	s.fullPass(ctx, sc)
	return true
}

// CompileAndVisitAST is the incremental entry point. A changedId absent from
// the tracked change set means a redundant notification: the call returns
// immediately without compiling. Otherwise the invalidation set is the
// reflexive-transitive impact closure of changedId, merged with every
// other pending change in scope, and the pass is restricted to that set when
// a previous successful compile exists to merge against; a first compile
// falls back to a full pass.
func (s *Service) CompileAndVisitAST(ctx context.Context, sc *scope.Scope, changedID string) {
	if !s.tracker.ChangedIDs()[changedID] {
		return
	}
	if !sc.ClasspathResolved() {
		return
	}

	sc.BeginCompile()
	defer sc.EndCompile()

	changed := s.scopedChanges(sc)
	if !changed[changedID] {
		return
	}

	ctx, span := observability.Tracer.Start(ctx, "compile.incremental",
		trace.WithAttributes(attribute.String("changed_id", changedID)))
	defer span.End()
	start := time.Now()

	invalidated := sc.Graph().ImpactClosure(changedID)
	for id := range changed {
		for member := range sc.Graph().ImpactClosure(id) {
			invalidated[member] = true
		}
	}

	// Snapshot the changes being processed now; anything recorded while the
	// oracle runs stays pending for the next cycle.
	snapshot := changed

	if sc.Index() == nil {
		// Nothing to merge a partial pass into.
		s.fullPass(ctx, sc)
		s.ClearProcessedChanges(sc, snapshot)
		observability.CompileDuration.WithLabelValues("incremental").Observe(time.Since(start).Seconds())
		return
	}

	s.CreateOrUpdateUnit(ctx, sc, invalidated)
	s.compileRestricted(ctx, sc, invalidated)
	s.VisitAST(ctx, sc)
	s.ClearProcessedChanges(sc, snapshot)
	observability.CompileDuration.WithLabelValues("incremental").Observe(time.Since(start).Seconds())
}

// CreateOrUpdateUnit rebuilds the scope's compilation unit from disk and
// tracked-buffer contents, merging extraInvalidated with the tracker's
// changes restricted to the scope's root. With no root, every tracked change
// is in scope. Returns the merged invalidation set.
func (s *Service) CreateOrUpdateUnit(ctx context.Context, sc *scope.Scope, extraInvalidated map[string]bool) map[string]bool {
	invalidated := make(map[string]bool, len(extraInvalidated))
	for id := range extraInvalidated {
		invalidated[id] = true
	}
	for id := range s.scopedChanges(sc) {
		invalidated[id] = true
	}

	sources := s.collectSources(ctx, sc)
	root, _ := sc.Root()
	sc.SetUnit(&ports.Unit{
		Root:             root,
		Sources:          sources,
		ClasspathEntries: sc.ClasspathEntries(),
	})
	return invalidated
}

// Compile invokes the oracle on the scope's current unit. A nil unit is a
// legitimate lifecycle state and a no-op. Diagnostics go to the sink, never
// to the caller; a failed pass marks the scope stale and keeps the last-good
// unit, index, and dependency graph intact.
func (s *Service) Compile(ctx context.Context, sc *scope.Scope) {
	s.compileUnit(ctx, sc, sc.Unit(), false, nil)
}

func (s *Service) compileRestricted(ctx context.Context, sc *scope.Scope, invalidated map[string]bool) {
	full := sc.Unit()
	if full == nil {
		return
	}

	restricted := &ports.Unit{
		Root:             full.Root,
		Sources:          make(map[string]string, len(invalidated)),
		ClasspathEntries: full.ClasspathEntries,
	}
	var removed []string
	for id := range invalidated {
		if text, ok := full.Sources[id]; ok {
			restricted.Sources[id] = text
		} else if strings.HasSuffix(id, sourceExtension) {
			removed = append(removed, id)
		}
	}
	s.compileUnit(ctx, sc, restricted, true, removed)
}

func (s *Service) compileUnit(ctx context.Context, sc *scope.Scope, unit *ports.Unit, restricted bool, removed []string) {
	s.clearStaging(sc)
	if unit == nil {
		return
	}

	outcome, err := s.oracle.Compile(ctx, unit)
	if err != nil {
		slog.Warn("compilation oracle failed", "error", err)
		sc.MarkStale()
		observability.CompilesTotal.WithLabelValues(mode(restricted), "error").Inc()
		return
	}

	s.publishDiagnostics(unit, outcome.Diagnostics)

	if outcome.Failed() {
		sc.MarkStale()
		observability.CompilesTotal.WithLabelValues(mode(restricted), "diagnostics").Inc()
		// Deletions are still real even when the surviving sources do not
		// compile; the next successful pass reconciles them.
		return
	}

	s.stagingMu.Lock()
	s.staging[sc] = &stagedPass{outcome: outcome, restricted: restricted, removed: removed}
	s.stagingMu.Unlock()
	observability.CompilesTotal.WithLabelValues(mode(restricted), "ok").Inc()
}

// VisitAST traverses the staged compile outcome into a fresh AST index and
// dependency graph and swaps both into the scope in one transition. Without
// a staged successful pass (nil unit, failed compile) it is a no-op.
func (s *Service) VisitAST(ctx context.Context, sc *scope.Scope) {
	s.stagingMu.Lock()
	pass, ok := s.staging[sc]
	delete(s.staging, sc)
	s.stagingMu.Unlock()
	if !ok || sc.Unit() == nil {
		return
	}

	_, span := observability.Tracer.Start(ctx, "compile.visit")
	defer span.End()
	start := time.Now()

	fresh := visitor.Build(pass.outcome.Units)
	var index *visitor.Index
	if pass.restricted {
		index = visitor.Merge(sc.Index(), fresh, pass.removed)
	} else {
		index = fresh
	}

	deps := graph.New()
	for _, path := range index.Paths() {
		deps.Update(path, index.Dependencies(path))
	}

	sc.CommitCompiled(sc.Unit(), index, deps)
	observability.GraphNodes.Set(float64(deps.NodeCount()))
	observability.VisitDuration.Observe(time.Since(start).Seconds())
}

// UpdateDependencyGraph recomputes graph edges for the given ids from the
// scope's AST index. With no index yet there is nothing to derive
// dependencies from and the call is a no-op.
func (s *Service) UpdateDependencyGraph(sc *scope.Scope, changedIDs []string) {
	index := sc.Index()
	if index == nil {
		return
	}
	g := sc.Graph()
	for _, id := range changedIDs {
		if _, ok := index.Unit(id); ok {
			g.Update(id, index.Dependencies(id))
		} else {
			g.Remove(id)
		}
	}
}

// SyntaxCheckSingleFile runs a parse-only check against the tracked contents
// of id, independent of any project scope. No tracked contents means no-op.
func (s *Service) SyntaxCheckSingleFile(ctx context.Context, id string) {
	text, ok := s.tracker.Contents(id)
	if !ok {
		return
	}
	s.sink.Publish(id, s.oracle.ParseOnly(ctx, id, text))
}

// RecompileForClasspathChange forces a full pass regardless of the
// already-compiled shortcut: previous results were produced against a
// classpath that no longer holds.
func (s *Service) RecompileForClasspathChange(ctx context.Context, sc *scope.Scope) {
	if !sc.ClasspathResolved() {
		return
	}
	sc.BeginCompile()
	defer sc.EndCompile()
	sc.MarkStale()
	s.fullPass(ctx, sc)
}

// RecompileAfterJavaChange forces a full pass after a Java source change:
// the classpath is unchanged but cross-language resolution results are not
// trustworthy anymore.
func (s *Service) RecompileAfterJavaChange(ctx context.Context, sc *scope.Scope) {
	if !sc.ClasspathResolved() {
		return
	}
	sc.BeginCompile()
	defer sc.EndCompile()
	sc.MarkStale()
	s.fullPass(ctx, sc)
}

// ResetChangedFilesForScope clears tracked changes under the scope's root.
// A rootless scope routes to ResetAllChanges: the catch-all scope owns every
// unmatched file, so its reset affects *all* tracked changes globally. Prefer
// calling ResetAllChanges directly when that is what you mean.
func (s *Service) ResetChangedFilesForScope(sc *scope.Scope) {
	root, ok := sc.Root()
	if !ok {
		s.ResetAllChanges()
		return
	}
	var under []string
	for id := range s.tracker.ChangedIDs() {
		if util.HasPathPrefix(id, root) {
			under = append(under, id)
		}
	}
	s.tracker.ClearChanged(under)
}

// ResetAllChanges clears every tracked change, regardless of scope.
func (s *Service) ResetAllChanges() {
	s.tracker.ClearAllChanged()
}

// ClearProcessedChanges clears exactly the ids captured in snapshot, leaving
// changes recorded after the snapshot was taken pending for the next cycle.
func (s *Service) ClearProcessedChanges(sc *scope.Scope, snapshot map[string]bool) {
	if len(snapshot) == 0 {
		return
	}
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	s.tracker.ClearChanged(ids)
}

// fullPass runs unit construction, compile, and traversal for the whole
// scope. Caller holds the compile guard.
func (s *Service) fullPass(ctx context.Context, sc *scope.Scope) {
	ctx, span := observability.Tracer.Start(ctx, "compile.full")
	defer span.End()
	start := time.Now()

	s.refreshScanResult(ctx, sc)
	snapshot := s.scopedChanges(sc)
	s.CreateOrUpdateUnit(ctx, sc, nil)
	s.Compile(ctx, sc)
	s.VisitAST(ctx, sc)
	s.ClearProcessedChanges(sc, snapshot)

	observability.CompileDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
}

// refreshScanResult acquires the shared classpath-scan result for the
// scope's current classpath and releases the previously held one.
func (s *Service) refreshScanResult(ctx context.Context, sc *scope.Scope) {
	if s.scanCache == nil {
		return
	}
	entries := sc.ClasspathEntries()
	if prev := sc.ScanResult(); prev != nil && prev.Fingerprint() == scan.Fingerprint(entries) {
		return
	}
	result, err := s.scanCache.Acquire(ctx, entries)
	if err != nil {
		slog.Warn("classpath scan failed", "error", errors.AddContext(err, errors.CtxClasspath, entries))
		return
	}
	root, _ := sc.Root()
	slog.Debug("classpath scan acquired", "root", root, "classes", len(result.Classes))
	if prev := sc.SwapScanResult(result); prev != nil {
		s.scanCache.Release(prev)
	}
}

// scopedChanges returns the tracker's changed ids restricted to the scope's
// root; with no root every tracked change is in scope.
func (s *Service) scopedChanges(sc *scope.Scope) map[string]bool {
	changed := s.tracker.ChangedIDs()
	root, ok := sc.Root()
	if !ok {
		return changed
	}
	scoped := make(map[string]bool, len(changed))
	for id := range changed {
		if util.HasPathPrefix(id, root) {
			scoped[id] = true
		}
	}
	return scoped
}

// collectSources lists the scope's source set: files on disk under the root
// (generated-output directories skipped) overlaid with tracked buffer
// contents, which shadow disk. A rootless scope compiles tracked buffers
// only. An unreadable root degrades to tracked contents instead of failing.
func (s *Service) collectSources(ctx context.Context, sc *scope.Scope) map[string]string {
	sources := make(map[string]string)

	if root, ok := sc.Root(); ok {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && (s.skipDirs[name] || strings.HasPrefix(name, ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(name, sourceExtension) {
				return nil
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				slog.Warn("failed to read source", "path", path, "error", readErr)
				return nil
			}
			sources[util.NormalizeRoot(path)] = string(content)
			return nil
		})
		if err != nil {
			slog.Debug("source walk incomplete", "root", root, "error", err)
		}
	}

	for _, id := range s.tracker.TrackedIDs() {
		if !strings.HasSuffix(id, sourceExtension) {
			continue
		}
		if root, ok := sc.Root(); ok && !util.HasPathPrefix(id, root) {
			continue
		}
		if text, ok := s.tracker.Contents(id); ok {
			sources[id] = text
		}
	}

	return sources
}

func (s *Service) publishDiagnostics(unit *ports.Unit, diagnostics []ports.Diagnostic) {
	if s.sink == nil {
		return
	}
	byPath := make(map[string][]ports.Diagnostic)
	for _, d := range diagnostics {
		byPath[d.Path] = append(byPath[d.Path], d)
	}
	for _, path := range util.SortedStringKeys(unit.Sources) {
		s.sink.Publish(path, byPath[path])
	}
	for path, diags := range byPath {
		if _, inUnit := unit.Sources[path]; !inUnit {
			s.sink.Publish(path, diags)
		}
	}
}

func (s *Service) clearStaging(sc *scope.Scope) {
	s.stagingMu.Lock()
	delete(s.staging, sc)
	s.stagingMu.Unlock()
}

func mode(restricted bool) string {
	if restricted {
		return "incremental"
	}
	return "full"
}
