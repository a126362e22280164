// Package security decides whether a file operation may proceed.
//
// A fixed, ordered registry of independent checks inspects the target path.
// Each check returns a violation message or "". The analyzer runs every
// check, classifies the findings and reduces them to a single Verdict.
package security

import (
	"path/filepath"
	"strings"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/patterns"
)

// Check names, used in findings and the audit log.
const (
	CheckPathTraversal      = "path_traversal"
	CheckSensitiveExtension = "sensitive_extension"
	CheckSensitiveFilename  = "sensitive_filename"
	CheckSensitivePattern   = "sensitive_pattern"
	CheckBlockedDirectory   = "blocked_directory"
)

// Check is one named predicate over a path. Run returns a violation message,
// or "" when the path passes. Checks must not have side effects.
type Check struct {
	Name string
	Run  func(path string) string
}

// Rules are the compiled security tables. Build with NewRules; never
// modified afterwards.
type Rules struct {
	root        string
	extensions  map[string]bool
	filenames   map[string]bool
	allowed     map[string]bool
	patterns    []patterns.Pattern
	blocked     []string
	highTerms   []string
	encodedSeqs []string
}

// NewRules compiles the configured tables. root is the project root used to
// decide whether an absolute path escapes the project.
func NewRules(sec config.Security, root string) *Rules {
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	return &Rules{
		root:        root,
		extensions:  toSet(sec.SensitiveExtensions),
		filenames:   toSet(sec.SensitiveFilenames),
		allowed:     toSet(sec.AllowedExceptions),
		patterns:    sec.SensitivePatterns,
		blocked:     sec.BlockedDirectories,
		highTerms:   sec.HighSeverityTerms,
		encodedSeqs: sec.EncodedTraversal,
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = true
	}
	return set
}

// IsAllowed reports whether the file name is on the allow-list.
func (r *Rules) IsAllowed(path string) bool {
	return r.allowed[strings.ToLower(baseName(path))]
}

// DefaultChecks returns the five checks in their canonical order.
func DefaultChecks(r *Rules) []Check {
	return []Check{
		{Name: CheckPathTraversal, Run: r.checkPathTraversal},
		{Name: CheckSensitiveExtension, Run: r.checkSensitiveExtension},
		{Name: CheckSensitiveFilename, Run: r.checkSensitiveFilename},
		{Name: CheckSensitivePattern, Run: r.checkSensitivePattern},
		{Name: CheckBlockedDirectory, Run: r.checkBlockedDirectory},
	}
}

// normalize cleans the path and converts it to forward slashes.
func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(strings.ReplaceAll(path, `\`, "/")))
}

// baseName handles both separators regardless of platform.
func baseName(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// extension returns the lower-cased suffix of the file name. A dotfile
// without a further dot (".env") has no extension.
func extension(path string) string {
	name := strings.ToLower(baseName(path))
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return name[i:]
}

func (r *Rules) checkPathTraversal(path string) string {
	normalized := normalize(path)
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return "Path traversal detected with '..'"
		}
	}

	if strings.HasPrefix(normalized, "/") && r.root != "" {
		rel, err := filepath.Rel(r.root, filepath.FromSlash(normalized))
		if err != nil || rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
			return "Absolute path outside project detected"
		}
	}

	lower := strings.ToLower(path)
	for _, seq := range r.encodedSeqs {
		if strings.Contains(lower, seq) {
			return "Encoded path traversal detected: " + seq
		}
	}
	return ""
}

func (r *Rules) checkSensitiveExtension(path string) string {
	if ext := extension(path); ext != "" && r.extensions[ext] {
		return "Sensitive file extension: " + ext
	}
	return ""
}

func (r *Rules) checkSensitiveFilename(path string) string {
	if name := strings.ToLower(baseName(path)); r.filenames[name] {
		return "Sensitive filename: " + name
	}
	return ""
}

func (r *Rules) checkSensitivePattern(path string) string {
	lower := strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
	for _, p := range r.patterns {
		if p.MatchString(lower) {
			return "Matches sensitive pattern: " + p.Pattern
		}
	}
	return ""
}

func (r *Rules) checkBlockedDirectory(path string) string {
	lower := strings.ToLower(normalize(path))
	for _, token := range r.blocked {
		if strings.Contains(lower, token) {
			return "File in blocked directory: " + token
		}
	}
	return ""
}
