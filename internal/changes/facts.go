package changes

import (
	"encoding/json"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"
)

// MaxFileBytes bounds how much of a changed file is read for analysis.
const MaxFileBytes = 1 << 20

// FileFacts are the structural facts extracted from one changed file.
type FileFacts struct {
	Path          string
	Size          int64
	Language      string
	Functions     []string
	Classes       []string
	Imports       []string
	Routes        []string
	Dependencies  []string
	ConfigKeys    []string
	Headings      []string
	CodeLanguages []string
}

// configIndicators are top-level keys that mark a JSON or YAML file as
// configuration worth mentioning.
var configIndicators = []string{"database", "api", "server", "client", "build", "scripts"}

var (
	routePattern = regexp.MustCompile(`(?:router|app)\.(?:get|post|put|delete|patch)\s*\(\s*['"]([^'"]+)['"]`)

	jsFunctionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`function\s+(\w+)\s*\(`),
		regexp.MustCompile(`const\s+(\w+)\s*=\s*(?:async\s+)?\(`),
		regexp.MustCompile(`export\s+(?:async\s+)?function\s+(\w+)\s*\(`),
		regexp.MustCompile(`(\w+)\s*:\s*(?:async\s+)?\(`),
	}
	jsClassPattern   = regexp.MustCompile(`class\s+(\w+)`)
	jsImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+.*?\s+from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`export\s+.*?\s+from\s+['"]([^'"]+)['"]`),
	}

	pyFunctionPattern = regexp.MustCompile(`(?m)^[ \t]*(?:async[ \t]+)?def[ \t]+(\w+)[ \t]*\(`)
	pyClassPattern    = regexp.MustCompile(`(?m)^[ \t]*class[ \t]+(\w+)`)
	pyImportPattern   = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([\w.]+(?:[ \t]*,[ \t]*[\w.]+)*)`)
	pyFromPattern     = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+([\w.]+)[ \t]+import[ \t]+\(?([\w., \t]+)`)

	mdHeadingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*$`)
	mdFencePattern   = regexp.MustCompile("(?m)^\\s*```[ \\t]*([\\w+#-]+)?")
)

// AnalyzeFile reads root/rel and extracts facts according to its extension.
func AnalyzeFile(root, rel string) (FileFacts, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))
	f, err := os.Open(path)
	if err != nil {
		return FileFacts{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileFacts{}, err
	}
	data, err := io.ReadAll(io.LimitReader(f, MaxFileBytes))
	if err != nil {
		return FileFacts{}, err
	}

	facts := FileFacts{Path: rel, Size: info.Size(), Language: Language(rel)}
	truncated := info.Size() > MaxFileBytes

	switch strings.ToLower(filepath.Ext(rel)) {
	case ".go":
		if !truncated {
			if err := analyzeGo(rel, data, &facts); err != nil {
				return facts, err
			}
		}
		facts.Routes = findAll(routePattern, data)
	case ".py":
		analyzePython(data, &facts)
		facts.Routes = findAll(routePattern, data)
	case ".js", ".ts", ".jsx", ".tsx":
		analyzeJS(data, &facts)
		facts.Routes = findAll(routePattern, data)
	case ".sh":
		if !truncated {
			if err := analyzeShell(rel, data, &facts); err != nil {
				return facts, err
			}
		}
	case ".json":
		if err := analyzeJSON(data, &facts); err != nil {
			return facts, err
		}
	case ".yaml", ".yml":
		if err := analyzeYAML(data, &facts); err != nil {
			return facts, err
		}
	case ".md":
		analyzeMarkdown(data, &facts)
	}
	return facts, nil
}

// Language returns a display name for the file's language, or "" when no
// lexer claims it.
func Language(filename string) string {
	lexer := lexers.Match(filepath.Base(filename))
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}

// canonicalLanguage maps a fenced-code tag such as "py" to its lexer name.
func canonicalLanguage(tag string) string {
	if lexer := lexers.Get(tag); lexer != nil {
		return lexer.Config().Name
	}
	return tag
}

func analyzeGo(name string, src []byte, facts *FileFacts) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, src, parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	for _, imp := range file.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil {
			facts.Imports = append(facts.Imports, p)
		}
	}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				if recv := receiverName(d.Recv.List[0].Type); recv != "" {
					name = recv + "." + name
				}
			}
			facts.Functions = append(facts.Functions, name)
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts := spec.(*ast.TypeSpec)
				switch ts.Type.(type) {
				case *ast.StructType, *ast.InterfaceType:
					facts.Classes = append(facts.Classes, ts.Name.Name)
				}
			}
		}
	}
	return nil
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

func analyzePython(src []byte, facts *FileFacts) {
	facts.Functions = findAll(pyFunctionPattern, src)
	facts.Classes = findAll(pyClassPattern, src)
	for _, m := range pyImportPattern.FindAllSubmatch(src, -1) {
		for _, mod := range strings.Split(string(m[1]), ",") {
			if mod = strings.TrimSpace(mod); mod != "" {
				facts.Imports = append(facts.Imports, mod)
			}
		}
	}
	for _, m := range pyFromPattern.FindAllSubmatch(src, -1) {
		module := string(m[1])
		for _, name := range strings.Split(string(m[2]), ",") {
			name = strings.TrimSpace(name)
			if i := strings.Index(name, " as "); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name != "" {
				facts.Imports = append(facts.Imports, module+"."+name)
			}
		}
	}
}

func analyzeJS(src []byte, facts *FileFacts) {
	seen := make(map[string]bool)
	for _, re := range jsFunctionPatterns {
		for _, name := range findAll(re, src) {
			if !seen[name] && !jsKeywords[name] {
				seen[name] = true
				facts.Functions = append(facts.Functions, name)
			}
		}
	}
	facts.Classes = findAll(jsClassPattern, src)
	for _, re := range jsImportPatterns {
		facts.Imports = append(facts.Imports, findAll(re, src)...)
	}
}

// jsKeywords keeps control-flow keywords out of the object-method pattern.
var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true,
}

func analyzeShell(name string, src []byte, facts *FileFacts) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(string(src)), name)
	if err != nil {
		return err
	}
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.FuncDecl:
			if n.Name != nil {
				facts.Functions = append(facts.Functions, n.Name.Value)
			}
		case *syntax.CallExpr:
			if len(n.Args) >= 2 {
				cmd := n.Args[0].Lit()
				if cmd == "source" || cmd == "." {
					if target := n.Args[1].Lit(); target != "" {
						facts.Imports = append(facts.Imports, target)
					}
				}
			}
		}
		return true
	})
	return nil
}

func analyzeJSON(src []byte, facts *FileFacts) error {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(src, &data); err != nil {
		return err
	}

	_, hasDeps := data["dependencies"]
	_, hasDevDeps := data["devDependencies"]
	if hasDeps || hasDevDeps {
		facts.ConfigKeys = append(facts.ConfigKeys, "package_dependencies")
		deps := make(map[string]bool)
		for _, key := range []string{"dependencies", "devDependencies"} {
			var m map[string]json.RawMessage
			if raw, ok := data[key]; ok && json.Unmarshal(raw, &m) == nil {
				for name := range m {
					deps[name] = true
				}
			}
		}
		facts.Dependencies = sortedKeys(deps)
	}

	for _, key := range configIndicators {
		if _, ok := data[key]; ok {
			facts.ConfigKeys = append(facts.ConfigKeys, key)
		}
	}
	return nil
}

func analyzeYAML(src []byte, facts *FileFacts) error {
	var data map[string]any
	if err := yaml.Unmarshal(src, &data); err != nil {
		return err
	}
	for _, key := range configIndicators {
		if _, ok := data[key]; ok {
			facts.ConfigKeys = append(facts.ConfigKeys, key)
		}
	}
	return nil
}

func analyzeMarkdown(src []byte, facts *FileFacts) {
	facts.Headings = findAll(mdHeadingPattern, src)

	langs := make(map[string]bool)
	for _, tag := range findAll(mdFencePattern, src) {
		if tag != "" {
			langs[canonicalLanguage(tag)] = true
		}
	}
	facts.CodeLanguages = sortedKeys(langs)
}

// findAll returns the first capture group of every match.
func findAll(re *regexp.Regexp, src []byte) []string {
	var out []string
	for _, m := range re.FindAllSubmatch(src, -1) {
		if len(m) > 1 {
			out = append(out, string(m[1]))
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
