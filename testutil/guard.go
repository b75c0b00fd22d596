// Package testutil holds test helpers that keep the flightcore package
// layering honest.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// ImportRule names a class of import paths a package must not reach.
type ImportRule struct {
	Reason    string
	Forbidden func(path string) bool
}

// InternalImports forbids anything under an internal/ directory.
var InternalImports = ImportRule{
	Reason:    "public packages must not depend on internal code",
	Forbidden: func(path string) bool { return strings.Contains(path, "/internal/") },
}

// InfraImports forbids the concrete storage and blob backends.
var InfraImports = ImportRule{
	Reason:    "backends are reached through core and blob",
	Forbidden: func(path string) bool { return strings.Contains(path, "/internal/infra/") },
}

// ModuleImports forbids the listed third-party modules and their packages.
func ModuleImports(reason string, modules ...string) ImportRule {
	return ImportRule{
		Reason: reason,
		Forbidden: func(path string) bool {
			for _, m := range modules {
				if path == m || strings.HasPrefix(path, m+"/") {
					return true
				}
			}
			return false
		},
	}
}

// AssertNoTransitiveDependency fails when `go list -deps pattern` reports a
// package matched by rule.
func AssertNoTransitiveDependency(t testing.TB, pattern string, rule ImportRule) {
	t.Helper()
	out, err := goListDeps(pattern)
	if err != nil {
		t.Fatalf("go list -deps %s: %v\n%s", pattern, err, out)
	}
	report(t, "transitive dependency", rule, matchLines(string(out), rule))
}

// AssertNoDirectImports parses the non-test files in dir and fails when one
// imports a path matched by rule. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, rule ImportRule) {
	t.Helper()
	viols, err := directImports(dir, rule)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, "direct import", rule, viols)
}

var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func matchLines(out string, rule ImportRule) []string {
	var viols []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && rule.Forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols
}

func directImports(dir string, rule ImportRule) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if rule.Forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalf interface {
	Fatalf(format string, args ...any)
}

func report(t fatalf, kind string, rule ImportRule, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden %s (%s):\n%s", kind, rule.Reason, strings.Join(viols, "\n"))
	}
}
