// Package oracle ships the built-in compilation oracle: a lightweight Groovy
// front end good enough to drive scheduling, dependency derivation, and
// syntax-only checks. A real compiler integration can replace it behind
// ports.CompilationOracle without touching the core.
package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gls/internal/core/ports"
	"gls/internal/engine/ast"
	"gls/internal/shared/util"
)

var (
	packageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)`)
	importRe  = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)`)
	classRe   = regexp.MustCompile(`^\s*(?:(?:public|final|abstract)\s+)*(?:class|interface|trait|enum)\s+(\w+)(?:\s+extends\s+([\w.]+))?(?:\s+implements\s+([\w.,\s]+))?`)
	typeRefRe = regexp.MustCompile(`\b([A-Z]\w*(?:\.[A-Z]\w*)*)\b`)
)

type Groovy struct{}

var _ ports.CompilationOracle = (*Groovy)(nil)

func NewGroovy() *Groovy {
	return &Groovy{}
}

// Compile scans every source in the unit into a SourceUnit. Source-level
// problems become diagnostics; only context cancellation is an error.
func (g *Groovy) Compile(ctx context.Context, unit *ports.Unit) (ports.CompileOutcome, error) {
	outcome := ports.CompileOutcome{}
	if unit == nil {
		return outcome, nil
	}

	for _, path := range util.SortedStringKeys(unit.Sources) {
		if err := ctx.Err(); err != nil {
			return ports.CompileOutcome{}, err
		}
		text := unit.Sources[path]
		parsed := g.scan(path, text)
		outcome.Units = append(outcome.Units, parsed)
		outcome.Diagnostics = append(outcome.Diagnostics, g.ParseOnly(ctx, path, text)...)
	}
	return outcome, nil
}

// ParseOnly runs the syntax-level checks without building units: unbalanced
// braces/parens/brackets and malformed package or import statements.
func (g *Groovy) ParseOnly(_ context.Context, path, text string) []ports.Diagnostic {
	var diags []ports.Diagnostic

	type open struct {
		ch   byte
		line int
		col  int
	}
	var stack []open
	pairs := map[byte]byte{'}': '{', ')': '(', ']': '['}

	line, col := 1, 0
	inString := byte(0)
	inLineComment := false
	inBlockComment := false
	var prev byte

	for i := 0; i < len(text); i++ {
		c := text[i]
		col++
		if c == '\n' {
			line++
			col = 0
			inLineComment = false
			prev = c
			continue
		}
		if inLineComment {
			prev = c
			continue
		}
		if inBlockComment {
			if prev == '*' && c == '/' {
				inBlockComment = false
			}
			prev = c
			continue
		}
		if inString != 0 {
			if c == inString && prev != '\\' {
				inString = 0
			}
			prev = c
			continue
		}
		switch c {
		case '\'', '"':
			inString = c
		case '/':
			if prev == '/' {
				inLineComment = true
			}
		case '*':
			if prev == '/' {
				inBlockComment = true
			}
		case '{', '(', '[':
			stack = append(stack, open{ch: c, line: line, col: col})
		case '}', ')', ']':
			want := pairs[c]
			if len(stack) == 0 || stack[len(stack)-1].ch != want {
				diags = append(diags, ports.Diagnostic{
					Path: path, Line: line, Column: col,
					Severity: ports.SeverityError,
					Message:  fmt.Sprintf("unexpected '%c'", c),
				})
			} else {
				stack = stack[:len(stack)-1]
			}
		}
		prev = c
	}

	for _, o := range stack {
		diags = append(diags, ports.Diagnostic{
			Path: path, Line: o.line, Column: o.col,
			Severity: ports.SeverityError,
			Message:  fmt.Sprintf("unclosed '%c'", o.ch),
		})
	}

	for n, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "import") && !importRe.MatchString(raw) {
			diags = append(diags, ports.Diagnostic{
				Path: path, Line: n + 1, Column: 1,
				Severity: ports.SeverityError,
				Message:  "malformed import statement",
			})
		}
	}

	return diags
}

func (g *Groovy) scan(path, text string) *ast.SourceUnit {
	unit := &ast.SourceUnit{Path: path}
	declared := make(map[string]bool)

	for n, raw := range strings.Split(text, "\n") {
		lineNo := n + 1

		if m := packageRe.FindStringSubmatch(raw); m != nil && unit.Package == "" {
			unit.Package = m[1]
			continue
		}
		if m := importRe.FindStringSubmatchIndex(raw); m != nil {
			class := raw[m[2]:m[3]]
			unit.Imports = append(unit.Imports, ast.Import{
				Class:    class,
				Location: ast.Position{Line: lineNo, Column: m[2] + 1},
			})
			continue
		}
		if m := classRe.FindStringSubmatch(raw); m != nil {
			decl := ast.ClassDecl{
				Name:       m[1],
				Superclass: m[2],
				Location:   ast.Position{Line: lineNo, Column: strings.Index(raw, m[1]) + 1},
			}
			for _, iface := range strings.Split(m[3], ",") {
				if iface = strings.TrimSpace(iface); iface != "" {
					decl.Interfaces = append(decl.Interfaces, iface)
				}
			}
			unit.Classes = append(unit.Classes, decl)
			declared[decl.Name] = true
			continue
		}

		for _, m := range typeRefRe.FindAllStringSubmatchIndex(raw, -1) {
			name := raw[m[2]:m[3]]
			if declared[name] {
				continue
			}
			unit.References = append(unit.References, ast.Reference{
				Name:     name,
				Location: ast.Position{Line: lineNo, Column: m[2] + 1},
			})
		}
	}

	return unit
}
