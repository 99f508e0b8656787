package ports

import (
	"context"

	"gls/internal/engine/ast"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a compiler or parser finding surfaced to the protocol layer.
// Diagnostics are reported, never thrown.
type Diagnostic struct {
	Path     string
	Line     int
	Column   int
	Severity Severity
	Message  string
}

// Unit is the compilation unit handle owned by a project scope: the source
// set handed to the oracle for one pass. A restricted source list expresses
// partial recompilation.
type Unit struct {
	Root             string
	Sources          map[string]string
	ClasspathEntries []string
}

// CompileOutcome carries everything one oracle pass produced.
type CompileOutcome struct {
	Units       []*ast.SourceUnit
	Diagnostics []Diagnostic
}

// Failed reports whether the pass produced error-severity diagnostics.
func (o CompileOutcome) Failed() bool {
	for _, d := range o.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CompilationOracle abstracts the language's own compiler. Compile never
// returns source problems as errors; those arrive as diagnostics. The error
// return is reserved for infrastructure failures (unreadable disk, cancelled
// context).
type CompilationOracle interface {
	Compile(ctx context.Context, unit *Unit) (CompileOutcome, error)
	ParseOnly(ctx context.Context, path, text string) []Diagnostic
}

// ContentTracker abstracts open-buffer content tracking and the changed-id
// set the compilation core consumes.
type ContentTracker interface {
	ChangedIDs() map[string]bool
	ForceChanged(id string)
	SetContents(id, text string)
	Contents(id string) (string, bool)
	TrackedIDs() []string
	ClearChanged(ids []string)
	ClearAllChanged()
}

// DiagnosticsSink receives per-file diagnostics after each pass. An empty
// slice clears previously published findings for the path.
type DiagnosticsSink interface {
	Publish(path string, diagnostics []Diagnostic)
}

// ClasspathListener is notified when a non-Groovy, dependency-affecting file
// changes (a build descriptor), so classpath resolution can rerun before
// recompilation is retried.
type ClasspathListener interface {
	ClasspathFileChanged(root, path string)
}

// ClasspathListenerFunc adapts a plain function to ClasspathListener.
type ClasspathListenerFunc func(root, path string)

func (f ClasspathListenerFunc) ClasspathFileChanged(root, path string) {
	f(root, path)
}

// ScopeStatus is the per-scope snapshot exposed to external telemetry.
type ScopeStatus struct {
	Root              string `json:"root,omitempty"`
	Compiled          bool   `json:"compiled"`
	ClasspathResolved bool   `json:"classpath_resolved"`
	SourceCount       int    `json:"source_count"`
	PendingChanges    int    `json:"pending_changes"`
}

// StatusSnapshot aggregates scope state for the status-reporting layer.
type StatusSnapshot struct {
	Scopes   []ScopeStatus `json:"scopes"`
	Active   int           `json:"active"`
	Compiled int           `json:"compiled"`
}
