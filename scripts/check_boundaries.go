package main

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// layerRule lists what a service layer may import besides the standard
// library. Local entries are layer names inside the same service.
type layerRule struct {
	local          []string
	libraries      []string
	noAdapters     bool
	noRuntimeInfra bool
}

var layerRules = map[string]layerRule{
	"domain": {
		local:          []string{"domain"},
		noAdapters:     true,
		noRuntimeInfra: true,
	},
	"ports": {
		local:          []string{"domain", "ports"},
		noAdapters:     true,
		noRuntimeInfra: true,
	},
	"application": {
		local: []string{"application", "domain", "ports"},
		libraries: []string{
			"github.com/cenkalti/backoff/v4",
			"golang.org/x/sync",
		},
		noAdapters:     true,
		noRuntimeInfra: true,
	},
	"transport": {
		local:          []string{"transport"},
		noAdapters:     true,
		noRuntimeInfra: true,
	},
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

type checker struct {
	module string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("check_boundaries", pflag.ContinueOnError)
	root := flags.String("root", "contexts", "directory holding the bounded contexts")
	module := flags.String("module", "pollwarden", "module path from go.mod")
	if err := flags.Parse(args); err != nil {
		return err
	}

	violations := checker{module: *module}.collect(*root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return nil
	}
	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	return fmt.Errorf("%d boundary violations", len(violations))
}

func collectViolations(root string) []violation {
	return checker{module: "pollwarden"}.collect(root)
}

// collect walks root/<context>/<service>/<layer>/... and checks every
// non-test file. Files directly under a service (module.go) are wiring and
// exempt.
func (c checker) collect(root string) []violation {
	var violations []violation
	base := filepath.Dir(root)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")
		if len(parts) < 5 || parts[0] != "contexts" {
			return nil
		}
		service := fmt.Sprintf("%s/contexts/%s/%s", c.module, parts[1], parts[2])
		violations = append(violations, c.checkFile(path, rel, service, parts[3])...)
		return nil
	})

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})
	return violations
}

func (c checker) checkFile(path string, rel string, service string, layer string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: rel, Line: 1, Rule: "file must parse"}}
	}

	rule, constrained := layerRules[layer]
	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		report := func(reason string) {
			violations = append(violations, violation{
				File:   rel,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   reason,
			})
		}

		if hasPrefix(importPath, c.module+"/contexts") && !hasPrefix(importPath, service) {
			report("cross-module imports are forbidden")
		}
		if !constrained || isStdlib(importPath, c.module) {
			continue
		}
		if rule.noAdapters && hasPrefix(importPath, service+"/adapters") {
			report(layer + " must not import adapters")
		}
		if rule.noRuntimeInfra && c.isRuntimeInfrastructure(importPath) {
			report(layer + " must not import runtime infrastructure")
		}
		if !c.allowed(importPath, service, rule) {
			report(layer + " import is outside explicit allowlist")
		}
	}
	return violations
}

func (c checker) allowed(importPath string, service string, rule layerRule) bool {
	for _, layer := range rule.local {
		if hasPrefix(importPath, service+"/"+layer) {
			return true
		}
	}
	for _, library := range rule.libraries {
		if hasPrefix(importPath, library) {
			return true
		}
	}
	return false
}

func (c checker) isRuntimeInfrastructure(importPath string) bool {
	return hasPrefix(importPath, c.module+"/internal") || hasPrefix(importPath, c.module+"/cmd")
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// isStdlib treats any path whose first element has no dot as standard
// library, except the module's own packages.
func isStdlib(importPath string, module string) bool {
	if hasPrefix(importPath, module) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
