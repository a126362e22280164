// Package changes summarises recently changed files: the staged index and the
// last commit. It extracts lightweight structural facts from each file that
// still exists in the working tree.
package changes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dgerlanc/hookgate/internal/logger"
)

// Source supplies the patches to analyse. *git.Client satisfies it.
type Source interface {
	StagedDiff(ctx context.Context) ([]byte, error)
	LastCommitDiff(ctx context.Context) ([]byte, error)
}

// Summary is the result of one analysis run.
type Summary struct {
	Files           []FileFacts
	NewDependencies []string
}

// APIChanges counts files that declare HTTP routes.
func (s Summary) APIChanges() int {
	n := 0
	for _, f := range s.Files {
		if len(f.Routes) > 0 {
			n++
		}
	}
	return n
}

// ConfigChanges counts files with configuration indicators.
func (s Summary) ConfigChanges() int {
	n := 0
	for _, f := range s.Files {
		if len(f.ConfigKeys) > 0 {
			n++
		}
	}
	return n
}

// Analyzer turns recent diffs into a Summary.
type Analyzer struct {
	src  Source
	root string
	exts map[string]bool
}

// New returns an Analyzer reading files under root. Only files whose
// extension is in exts are analysed.
func New(src Source, root string, exts []string) *Analyzer {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return &Analyzer{src: src, root: root, exts: set}
}

// Analyze collects the staged and last-commit diffs and extracts facts for
// every recognised file that still exists. It fails only when neither diff
// could be obtained; per-file problems skip the file.
func (a *Analyzer) Analyze(ctx context.Context) (Summary, error) {
	staged, stagedErr := a.src.StagedDiff(ctx)
	last, lastErr := a.src.LastCommitDiff(ctx)
	if stagedErr != nil && lastErr != nil {
		return Summary{}, fmt.Errorf("reading recent changes: %w", errors.Join(stagedErr, lastErr))
	}

	var changed []ChangedFile
	for _, patch := range [][]byte{staged, last} {
		files, err := ParsePatch(patch)
		if err != nil {
			logger.Debug("skipping unparsable patch", "error", err)
			continue
		}
		changed = append(changed, files...)
	}

	var summary Summary
	seen := make(map[string]bool)
	seenDeps := make(map[string]bool)
	for _, cf := range changed {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("change analysis interrupted: %w", err)
		}
		if cf.Deleted || cf.Path == "" {
			continue
		}
		if isManifest(cf.Path) {
			for _, dep := range newDependencies(cf.Path, cf.Added) {
				if !seenDeps[dep] {
					seenDeps[dep] = true
					summary.NewDependencies = append(summary.NewDependencies, dep)
				}
			}
		}
		if seen[cf.Path] || !a.exts[strings.ToLower(filepath.Ext(cf.Path))] {
			continue
		}
		seen[cf.Path] = true

		if _, err := os.Stat(filepath.Join(a.root, filepath.FromSlash(cf.Path))); err != nil {
			continue
		}
		facts, err := AnalyzeFile(a.root, cf.Path)
		if err != nil {
			logger.Debug("skipping changed file", "path", cf.Path, "error", err)
			continue
		}
		if logger.Enabled(slog.LevelDebug) {
			logger.Debug("analyzed changed file",
				"path", facts.Path,
				"language", facts.Language,
				"size", humanize.Bytes(uint64(facts.Size)),
				"functions", len(facts.Functions))
		}
		summary.Files = append(summary.Files, facts)
	}
	return summary, nil
}
