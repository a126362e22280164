// Package project infers frameworks, languages, layout patterns and a rough
// complexity score from a project's manifests and directory layout.
package project

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dgerlanc/hookgate/internal/logger"
)

// Project types, in priority order.
const (
	TypeWebApplication    = "web_application"
	TypeAPIServer         = "api_server"
	TypeNodeApplication   = "node_application"
	TypePythonApplication = "python_application"
	TypeGoApplication     = "go_application"
	TypeRustApplication   = "rust_application"
	TypeGeneral           = "general"
)

// Language labels.
const (
	LangJavaScript = "JavaScript/TypeScript"
	LangPython     = "Python"
	LangGo         = "Go"
	LangRust       = "Rust"
)

// MaxComplexity is the upper bound of Intelligence.Complexity.
const MaxComplexity = 10

// Intelligence summarizes a project.
type Intelligence struct {
	Name       string
	Frameworks []string
	Languages  []string
	Patterns   []string
	Type       string
	Complexity int
	FileCount  int
}

type depRule struct {
	dep       string
	framework string
}

var nodeFrameworks = []depRule{
	{"next", "Next.js"},
	{"react", "React"},
	{"express", "Express.js"},
	{"@trpc/server", "tRPC"},
	{"drizzle-orm", "Drizzle ORM"},
}

var pythonFrameworks = []depRule{
	{"django", "Django"},
	{"flask", "Flask"},
	{"fastapi", "FastAPI"},
}

// goFrameworks match module path prefixes.
var goFrameworks = []depRule{
	{"github.com/gin-gonic/gin", "Gin"},
	{"github.com/labstack/echo", "Echo"},
	{"github.com/go-chi/chi", "Chi"},
	{"github.com/spf13/cobra", "Cobra"},
}

var rustFrameworks = []depRule{
	{"actix-web", "Actix Web"},
	{"axum", "Axum"},
	{"rocket", "Rocket"},
}

var markerFiles = []depRule{
	{"next.config.js", "Next.js"},
	{"tailwind.config.js", "Tailwind CSS"},
	{"drizzle.config.ts", "Drizzle ORM"},
}

var patternDirs = []struct {
	dir     string
	pattern string
}{
	{"components", "Component-based"},
	{"api", "API-first"},
	{"lib/api", "Layered Architecture"},
	{"hooks", "Hook Pattern"},
	{"internal", "Internal Packages"},
	{"cmd", "Command Entrypoints"},
}

var apiFrameworks = map[string]bool{
	"Express.js": true, "FastAPI": true, "Flask": true,
	"Gin": true, "Echo": true, "Actix Web": true, "Axum": true,
}

var sourceExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".go": true, ".rs": true,
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "venv": true,
	".venv": true, "env": true, "__pycache__": true, "target": true,
}

// Engine analyzes the project rooted at a directory.
type Engine struct {
	root string
}

// New returns an Engine for root.
func New(root string) *Engine {
	return &Engine{root: root}
}

// collector accumulates frameworks and languages without duplicates.
type collector struct {
	frameworks []string
	languages  []string
	seen       map[string]bool
}

func (c *collector) framework(name string) {
	if !c.seen["f:"+name] {
		c.seen["f:"+name] = true
		c.frameworks = append(c.frameworks, name)
	}
}

func (c *collector) language(name string) {
	if !c.seen["l:"+name] {
		c.seen["l:"+name] = true
		c.languages = append(c.languages, name)
	}
}

func (c *collector) match(rules []depRule, deps map[string]bool) {
	for _, r := range rules {
		if deps[r.dep] {
			c.framework(r.framework)
		}
	}
}

// Analyze inspects the project. Manifest parse errors only drop that
// manifest's frameworks. When ctx expires during the source walk the file
// count so far is used.
func (e *Engine) Analyze(ctx context.Context) (Intelligence, error) {
	if info, err := os.Stat(e.root); err != nil {
		return Intelligence{}, err
	} else if !info.IsDir() {
		return Intelligence{}, errors.New("project root is not a directory")
	}

	c := &collector{seen: make(map[string]bool)}

	hasPackageJSON := e.exists("package.json")
	if hasPackageJSON {
		c.language(LangJavaScript)
		if deps, err := e.packageJSONDeps(); err != nil {
			logger.Debug("failed to read package.json", "error", err)
		} else {
			c.match(nodeFrameworks, deps)
		}
	}

	hasPython := false
	for _, name := range []string{"requirements.txt", "pyproject.toml", "Pipfile"} {
		if !e.exists(name) {
			continue
		}
		hasPython = true
		deps, err := e.pythonDeps(name)
		if err != nil {
			logger.Debug("failed to read python manifest", "file", name, "error", err)
			continue
		}
		c.match(pythonFrameworks, deps)
	}
	if hasPython {
		c.language(LangPython)
	}

	hasGoMod := e.exists("go.mod")
	if hasGoMod {
		c.language(LangGo)
		if mods, err := e.goModules(); err != nil {
			logger.Debug("failed to read go.mod", "error", err)
		} else {
			for _, r := range goFrameworks {
				for _, m := range mods {
					if m == r.dep || strings.HasPrefix(m, r.dep+"/") {
						c.framework(r.framework)
						break
					}
				}
			}
		}
	}

	hasCargo := e.exists("Cargo.toml")
	if hasCargo {
		c.language(LangRust)
		if deps, err := e.cargoDeps(); err != nil {
			logger.Debug("failed to read Cargo.toml", "error", err)
		} else {
			c.match(rustFrameworks, deps)
		}
	}

	for _, m := range markerFiles {
		if e.exists(m.dep) {
			c.framework(m.framework)
		}
	}

	intel := Intelligence{
		Name:       filepath.Base(e.root),
		Frameworks: c.frameworks,
		Languages:  c.languages,
	}
	for _, p := range patternDirs {
		if e.isDir(p.dir) {
			intel.Patterns = append(intel.Patterns, p.pattern)
		}
	}

	intel.Type = classify(intel.Frameworks, hasPackageJSON, hasPython, hasGoMod, hasCargo)
	intel.FileCount = e.countSourceFiles(ctx)
	intel.Complexity = Complexity(len(intel.Frameworks), len(intel.Languages), len(intel.Patterns), intel.FileCount)
	return intel, nil
}

func classify(frameworks []string, node, python, goMod, cargo bool) string {
	for _, f := range frameworks {
		if f == "Next.js" || f == "React" {
			return TypeWebApplication
		}
	}
	for _, f := range frameworks {
		if apiFrameworks[f] {
			return TypeAPIServer
		}
	}
	switch {
	case node:
		return TypeNodeApplication
	case python:
		return TypePythonApplication
	case goMod:
		return TypeGoApplication
	case cargo:
		return TypeRustApplication
	}
	return TypeGeneral
}

// Complexity scores a project from 0 to MaxComplexity: one point per
// framework and language, half a point per pattern, and a bonus for large
// source trees.
func Complexity(frameworks, languages, patterns, files int) int {
	score := float64(frameworks) + float64(languages) + float64(patterns)*0.5
	switch {
	case files > 100:
		score += 2
	case files > 50:
		score++
	}
	n := int(score)
	if n < 0 {
		return 0
	}
	if n > MaxComplexity {
		return MaxComplexity
	}
	return n
}

func (e *Engine) path(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

func (e *Engine) exists(rel string) bool {
	info, err := os.Stat(e.path(rel))
	return err == nil && info.Mode().IsRegular()
}

func (e *Engine) isDir(rel string) bool {
	info, err := os.Stat(e.path(rel))
	return err == nil && info.IsDir()
}

func (e *Engine) packageJSONDeps() (map[string]bool, error) {
	data, err := os.ReadFile(e.path("package.json"))
	if err != nil {
		return nil, err
	}
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	deps := make(map[string]bool, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name := range pkg.Dependencies {
		deps[name] = true
	}
	for name := range pkg.DevDependencies {
		deps[name] = true
	}
	return deps, nil
}

// RequirementName extracts the distribution name from a requirement
// specifier such as "Flask[async]>=2.0; python_version>'3.8'".
func RequirementName(spec string) string {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexAny(spec, " \t=<>~!;[@("); i >= 0 {
		spec = spec[:i]
	}
	return strings.ToLower(spec)
}

func (e *Engine) pythonDeps(name string) (map[string]bool, error) {
	deps := make(map[string]bool)
	switch name {
	case "requirements.txt":
		f, err := os.Open(e.path(name))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
				continue
			}
			if n := RequirementName(line); n != "" {
				deps[n] = true
			}
		}
		return deps, sc.Err()

	case "pyproject.toml":
		var py struct {
			Project struct {
				Dependencies []string `toml:"dependencies"`
			} `toml:"project"`
			Tool struct {
				Poetry struct {
					Dependencies map[string]any `toml:"dependencies"`
				} `toml:"poetry"`
			} `toml:"tool"`
		}
		if _, err := toml.DecodeFile(e.path(name), &py); err != nil {
			return nil, err
		}
		for _, spec := range py.Project.Dependencies {
			deps[RequirementName(spec)] = true
		}
		for n := range py.Tool.Poetry.Dependencies {
			deps[strings.ToLower(n)] = true
		}
		return deps, nil

	case "Pipfile":
		var pip struct {
			Packages    map[string]any `toml:"packages"`
			DevPackages map[string]any `toml:"dev-packages"`
		}
		if _, err := toml.DecodeFile(e.path(name), &pip); err != nil {
			return nil, err
		}
		for n := range pip.Packages {
			deps[strings.ToLower(n)] = true
		}
		for n := range pip.DevPackages {
			deps[strings.ToLower(n)] = true
		}
		return deps, nil
	}
	return deps, nil
}

// goModules lists the module paths required by go.mod, in both the single
// line and block forms.
func (e *Engine) goModules() ([]string, error) {
	f, err := os.Open(e.path("go.mod"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mods []string
	inBlock := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			if fields := strings.Fields(line); len(fields) > 0 {
				mods = append(mods, fields[0])
			}
		case strings.HasPrefix(line, "require "):
			if fields := strings.Fields(line); len(fields) > 1 {
				mods = append(mods, fields[1])
			}
		}
	}
	return mods, sc.Err()
}

func (e *Engine) cargoDeps() (map[string]bool, error) {
	var cargo struct {
		Dependencies    map[string]any `toml:"dependencies"`
		DevDependencies map[string]any `toml:"dev-dependencies"`
	}
	if _, err := toml.DecodeFile(e.path("Cargo.toml"), &cargo); err != nil {
		return nil, err
	}
	deps := make(map[string]bool)
	for n := range cargo.Dependencies {
		deps[n] = true
	}
	for n := range cargo.DevDependencies {
		deps[n] = true
	}
	return deps, nil
}

// countSourceFiles walks the tree counting files with a source extension.
func (e *Engine) countSourceFiles(ctx context.Context) int {
	count := 0
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != e.root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if sourceExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			count++
		}
		return nil
	})
	if err != nil {
		logger.Debug("source walk stopped early", "files", count, "error", err)
	}
	return count
}
