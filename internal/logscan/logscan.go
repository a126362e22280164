// Package logscan looks for recent build, test, lint and dependency errors in
// the project's conventional log files.
package logscan

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgerlanc/hookgate/internal/config"
	"github.com/dgerlanc/hookgate/internal/logger"
	"github.com/dgerlanc/hookgate/internal/patterns"
)

// MaxPerFamily caps how many matches each family keeps.
const MaxPerFamily = 3

// Family names from the default configuration.
const (
	BuildError      = "build_error"
	TestFailure     = "test_failure"
	LintWarning     = "lint_warning"
	DependencyError = "dependency_error"
)

// Match is one matched log excerpt.
type Match struct {
	File string
	Text string
}

// Report holds matches per family.
type Report struct {
	Matches map[string][]Match
	Files   int
}

// Count returns the number of retained matches for family.
func (r Report) Count(family string) int {
	return len(r.Matches[family])
}

// Any reports whether any family matched.
func (r Report) Any() bool {
	for _, m := range r.Matches {
		if len(m) > 0 {
			return true
		}
	}
	return false
}

// Scanner scans log files under a project root.
type Scanner struct {
	root     string
	globs    []string
	maxBytes int64
	families []patterns.Pattern
}

// New returns a Scanner for root using the context settings.
func New(root string, cfg config.Context) *Scanner {
	return &Scanner{
		root:     root,
		globs:    cfg.LogGlobs,
		maxBytes: cfg.MaxLogBytes,
		families: cfg.ErrorPatterns,
	}
}

// Scan reads every log file matched by the globs and collects the first
// MaxPerFamily matches of each family. Unreadable files are skipped. The
// scan stops early with ctx's error once ctx is done.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	report := Report{Matches: make(map[string][]Match)}

	for _, file := range s.files() {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("log scan interrupted: %w", err)
		}
		if s.full(report) {
			break
		}

		content, err := readTail(file, s.maxBytes)
		if err != nil {
			logger.Debug("skipping unreadable log", "file", file, "error", err)
			continue
		}
		report.Files++

		rel, err := filepath.Rel(s.root, file)
		if err != nil {
			rel = file
		}
		for _, fam := range s.families {
			have := len(report.Matches[fam.Name])
			if have >= MaxPerFamily || fam.Regex == nil {
				continue
			}
			for _, text := range fam.Regex.FindAllString(content, MaxPerFamily-have) {
				report.Matches[fam.Name] = append(report.Matches[fam.Name], Match{File: rel, Text: text})
			}
		}
	}

	logger.Debug("log scan finished", "files", report.Files, "families", len(report.Matches))
	return report, nil
}

func (s *Scanner) full(r Report) bool {
	for _, fam := range s.families {
		if len(r.Matches[fam.Name]) < MaxPerFamily {
			return false
		}
	}
	return true
}

// files expands the globs relative to the root, without duplicates.
func (s *Scanner) files() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range s.globs {
		matches, err := filepath.Glob(filepath.Join(s.root, filepath.FromSlash(g)))
		if err != nil {
			logger.Debug("invalid log glob", "glob", g, "error", err)
			continue
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
				out = append(out, m)
			}
		}
	}
	return out
}

// readTail returns at most the last max bytes of the file. A cut-off first
// line is dropped.
func readTail(path string, max int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	truncated := false
	if max > 0 && info.Size() > max {
		if _, err := f.Seek(info.Size()-max, io.SeekStart); err != nil {
			return "", err
		}
		truncated = true
	}

	var r io.Reader = f
	if max > 0 {
		r = io.LimitReader(f, max)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if truncated {
		for i, b := range data {
			if b == '\n' {
				data = data[i+1:]
				break
			}
		}
	}
	return string(data), nil
}
