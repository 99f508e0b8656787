// Package app wires the daemon together: configuration, content tracking,
// scope management, the compilation service, event routing, and the
// filesystem watcher.
package app

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gls/internal/core/compile"
	"gls/internal/core/config"
	"gls/internal/core/errors"
	"gls/internal/core/ports"
	"gls/internal/core/router"
	"gls/internal/core/scope"
	"gls/internal/core/tracker"
	"gls/internal/core/watcher"
	"gls/internal/engine/oracle"
	"gls/internal/engine/scan"
	"gls/internal/shared/util"
)

// descriptorNames mark a directory as a project root during discovery.
var descriptorNames = map[string]bool{
	"build.gradle":        true,
	"build.gradle.kts":    true,
	"settings.gradle":     true,
	"settings.gradle.kts": true,
	"pom.xml":             true,
}

type App struct {
	Config  *config.Config
	Tracker *tracker.Memory
	Manager *scope.Manager
	Service *compile.Service
	Router  *router.Router

	scanCache     *scan.Cache
	sink          ports.DiagnosticsSink
	activeWatcher *watcher.Watcher
}

// New wires the pipeline. The diagnostics sink is injected by the caller; a
// nil sink logs diagnostics instead of publishing them.
func New(cfg *config.Config, sink ports.DiagnosticsSink) (*App, error) {
	if sink == nil {
		sink = logSink{}
	}

	tr := tracker.NewMemory()
	scans := scan.NewCache(scanClasspath)
	manager := scope.NewManager()

	a := &App{
		Config:    cfg,
		Tracker:   tr,
		Manager:   manager,
		scanCache: scans,
		sink:      sink,
	}

	// The service skips the same directories the router classifies as output.
	a.Service = compile.NewService(oracle.NewGroovy(), tr, sink, scans, compile.Options{
		BuildOutputDirs: router.BuildOutputDirNames(cfg.Compile.BuildOutputDirs),
	})
	a.Router = router.New(manager, a.Service, tr, ports.ClasspathListenerFunc(a.onClasspathFileChanged), router.Options{
		ExtraBuildOutputDirs: cfg.Compile.BuildOutputDirs,
		CompileRate:          cfg.Compile.Rate,
		CompileBurst:         cfg.Compile.Burst,
	})

	return a, nil
}

// DiscoverProjects walks the watch paths for build descriptors and registers
// each containing directory as a project root. Configured roots and
// classpaths are applied on top; scopes with a known classpath get an initial
// compilation pass.
func (a *App) DiscoverProjects(ctx context.Context) error {
	roots := append([]string(nil), a.Config.Projects.Roots...)
	for _, watchPath := range a.Config.WatchPaths {
		found, err := discoverRoots(watchPath)
		if err != nil {
			err = errors.AddContext(err, errors.CtxPath, watchPath)
			slog.Warn("project discovery incomplete", "error", err)
			continue
		}
		roots = append(roots, found...)
	}
	a.Manager.RegisterDiscoveredProjects(roots)

	for root, entries := range a.Config.Projects.Classpaths {
		a.Manager.UpdateProjectClasspath(root, entries)
	}

	for _, sc := range a.Manager.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sc.ClasspathResolved() {
			a.Service.EnsureCompiled(ctx, sc)
		}
	}
	return nil
}

// StartWatcher begins filesystem watching; debounced batches flow through
// the router.
func (a *App) StartWatcher() error {
	w, err := watcher.New(
		a.Config.Watch.Debounce,
		append(a.Router.BuildOutputDirs(), a.Config.Exclude.Dirs...),
		a.Config.Exclude.Files,
		a.Router.OnChange,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "failed to build watcher")
	}
	a.activeWatcher = w
	if err := w.Watch(a.Config.WatchPaths); err != nil {
		return errors.AddContext(err, errors.CtxOperation, "watch")
	}
	return nil
}

// ResolveClasspath installs entries for root and recompiles the scope, which
// also processes any changes recorded while resolution was pending.
func (a *App) ResolveClasspath(ctx context.Context, root string, entries []string) {
	sc := a.Manager.UpdateProjectClasspath(root, entries)
	a.Service.RecompileForClasspathChange(ctx, sc)
}

// onClasspathFileChanged reacts to a build descriptor change. Resolution is
// external and runs before recompilation is retried: the scope stays pending
// until ResolveClasspath delivers fresh entries. A classpath configured at
// startup is not re-applied here; the descriptor change is exactly what made
// it stale.
func (a *App) onClasspathFileChanged(root, path string) {
	slog.Info("classpath file changed, awaiting resolution", "root", root, "path", path)
}

// Status snapshots all scopes for the status endpoint.
func (a *App) Status() ports.StatusSnapshot {
	return a.Manager.Status(func(sc *scope.Scope) int {
		count := 0
		root, ok := sc.Root()
		for id := range a.Tracker.ChangedIDs() {
			if !ok || util.HasPathPrefix(id, root) {
				count++
			}
		}
		return count
	})
}

func (a *App) Close(ctx context.Context) error {
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			return err
		}
		a.activeWatcher = nil
	}
	a.scanCache.Clear()
	return ctx.Err()
}

func discoverRoots(watchPath string) ([]string, error) {
	var roots []string
	err := filepath.WalkDir(watchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != watchPath && (strings.HasPrefix(name, ".") || name == "build" || name == "target" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if descriptorNames[d.Name()] {
			abs, absErr := filepath.Abs(filepath.Dir(path))
			if absErr != nil {
				abs = filepath.Dir(path)
			}
			roots = append(roots, abs)
		}
		return nil
	})
	return roots, err
}

// scanClasspath enumerates the class names reachable from classpath entries:
// .class files under directory entries, plus the archive name for jars. Full
// archive indexing is left to the protocol layer's symbol provider.
func scanClasspath(ctx context.Context, entries []string) ([]string, error) {
	var classes []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(entry)
		if err != nil {
			// Missing entries are a classpath problem the compile surfaces,
			// not a scan failure.
			continue
		}
		if !info.IsDir() {
			classes = append(classes, entry)
			continue
		}
		walkErr := filepath.WalkDir(entry, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".class") {
				classes = append(classes, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return classes, nil
}

// logSink is the fallback diagnostics sink when no protocol layer is wired.
type logSink struct{}

func (logSink) Publish(path string, diags []ports.Diagnostic) {
	for _, d := range diags {
		slog.Info("diagnostic",
			"path", path, "line", d.Line, "column", d.Column,
			"severity", d.Severity, "message", d.Message)
	}
}
