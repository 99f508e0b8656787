// Package router classifies debounced file events and dispatches them to the
// owning scope: source changes trigger incremental compilation, Java changes
// force a full pass, build descriptor changes invalidate the classpath, and
// generated build output is dropped on the floor.
package router

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gls/internal/core/compile"
	"gls/internal/core/ports"
	"gls/internal/core/scope"
	"gls/internal/shared/observability"
	"gls/internal/shared/util"
)

// defaultBuildOutputDirs are first-segment directory names under a project
// root that only ever hold generated artifacts.
var defaultBuildOutputDirs = []string{"build", "target", ".gradle", "out", "bin", "node_modules"}

// buildDescriptors are file names whose change invalidates a project's
// resolved classpath.
var buildDescriptors = map[string]bool{
	"build.gradle":        true,
	"build.gradle.kts":    true,
	"settings.gradle":     true,
	"settings.gradle.kts": true,
	"gradle.properties":   true,
	"pom.xml":             true,
}

// Options tunes classification and dispatch.
type Options struct {
	// ExtraBuildOutputDirs extends the built-in generated-output directory
	// names.
	ExtraBuildOutputDirs []string
	// CompileRate bounds compile triggers per second; zero means unbounded.
	CompileRate float64
	// CompileBurst is the limiter burst size when CompileRate is set.
	CompileBurst int
}

// Router owns the event-to-action mapping. It never compiles unresolved
// scopes: their changes stay recorded in the tracker and are picked up by the
// pass that follows classpath resolution.
type Router struct {
	manager  *scope.Manager
	service  *compile.Service
	tracker  ports.ContentTracker
	listener ports.ClasspathListener

	buildOutputDirs map[string]bool
	limiter         *util.Limiter
}

// BuildOutputDirNames merges the built-in generated-output directory names
// with configured extras, deduplicated and sorted.
func BuildOutputDirNames(extra []string) []string {
	dirs := make(map[string]bool, len(defaultBuildOutputDirs)+len(extra))
	for _, d := range defaultBuildOutputDirs {
		dirs[d] = true
	}
	for _, d := range extra {
		if d = strings.TrimSpace(d); d != "" {
			dirs[d] = true
		}
	}
	return util.SortedStringKeys(dirs)
}

func New(manager *scope.Manager, service *compile.Service, tracker ports.ContentTracker, listener ports.ClasspathListener, opts Options) *Router {
	dirs := make(map[string]bool)
	for _, d := range BuildOutputDirNames(opts.ExtraBuildOutputDirs) {
		dirs[d] = true
	}

	var limiter *util.Limiter
	if opts.CompileRate > 0 {
		burst := opts.CompileBurst
		if burst < 1 {
			burst = 1
		}
		limiter = util.NewLimiter(opts.CompileRate, burst)
	}

	return &Router{
		manager:         manager,
		service:         service,
		tracker:         tracker,
		listener:        listener,
		buildOutputDirs: dirs,
		limiter:         limiter,
	}
}

// BuildOutputDirs returns the configured generated-output directory names,
// for wiring into source collection.
func (r *Router) BuildOutputDirs() []string {
	return util.SortedStringKeys(r.buildOutputDirs)
}

// IsBuildOutput reports whether path sits under a generated-output directory
// of root. Classification looks at the first path segment relative to the
// root only: a project legitimately named "build" is not its own output, and
// a nested "src/build" directory is not generated output either.
func (r *Router) IsBuildOutput(path, root string) bool {
	segments := util.RelativeSegments(path, root)
	if len(segments) == 0 {
		// Outside the root, or the root itself.
		return false
	}
	return r.buildOutputDirs[segments[0]]
}

// HandleChanges routes one debounced batch of changed paths. Paths are
// grouped by owning scope; within a scope, descriptor changes win over source
// changes because they invalidate everything anyway.
func (r *Router) HandleChanges(ctx context.Context, paths []string) {
	batch := uuid.NewString()

	type pending struct {
		sc          *scope.Scope
		groovy      []string
		java        bool
		descriptors []string
	}
	byScope := make(map[*scope.Scope]*pending)

	for _, raw := range paths {
		observability.RouterEventsTotal.Inc()
		path := util.NormalizeRoot(raw)
		sc := r.manager.Resolve(path)

		if root, ok := sc.Root(); ok && r.IsBuildOutput(path, root) {
			observability.RouterBuildOutputSkippedTotal.Inc()
			continue
		}

		p := byScope[sc]
		if p == nil {
			p = &pending{sc: sc}
			byScope[sc] = p
		}

		switch {
		case buildDescriptors[filepath.Base(path)]:
			p.descriptors = append(p.descriptors, path)
		case strings.HasSuffix(path, ".groovy"):
			r.tracker.ForceChanged(path)
			p.groovy = append(p.groovy, path)
		case strings.HasSuffix(path, ".java"):
			p.java = true
		default:
			// Unrelated file type.
		}
	}

	for _, p := range byScope {
		r.dispatch(ctx, batch, p.sc, p.groovy, p.java, p.descriptors)
	}
}

func (r *Router) dispatch(ctx context.Context, batch string, sc *scope.Scope, groovy []string, java bool, descriptors []string) {
	root, _ := sc.Root()

	if len(descriptors) > 0 {
		sc.ResetClasspathResolved()
		slog.Info("build descriptor changed", "batch", batch, "root", root, "paths", descriptors)
		if r.listener != nil {
			for _, path := range descriptors {
				r.listener.ClasspathFileChanged(root, path)
			}
		}
		// Source changes in the same batch stay recorded; the recompile
		// that follows classpath resolution picks them up.
		return
	}

	if !sc.ClasspathResolved() {
		// Not an error: the change is recorded and compilation is deferred
		// until the classpath resolves.
		observability.RouterDeferredTotal.Inc()
		slog.Debug("change deferred until classpath resolution", "batch", batch, "root", root)
		return
	}

	if r.limiter != nil && !r.limiter.Allow(1) {
		// Changes stay in the tracker; a later batch or explicit pass
		// processes them.
		observability.RouterDeferredTotal.Inc()
		slog.Debug("compile trigger rate-limited", "batch", batch, "root", root)
		return
	}

	if java {
		slog.Debug("java change", "batch", batch, "root", root)
		r.service.RecompileAfterJavaChange(ctx, sc)
		return
	}

	for _, path := range groovy {
		r.service.CompileAndVisitAST(ctx, sc, path)
	}
}

// OnChange adapts HandleChanges to the watcher's callback signature.
func (r *Router) OnChange(paths []string) {
	r.HandleChanges(context.Background(), paths)
}
