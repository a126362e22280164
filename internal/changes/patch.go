package changes

import (
	"bytes"
	"fmt"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ChangedFile is one file from a parsed patch.
type ChangedFile struct {
	Path    string
	Deleted bool
	// Added holds the text of added lines, without the leading '+'.
	Added []string
}

// ParsePatch parses a unified diff as produced by git diff.
func ParsePatch(patch []byte) ([]ChangedFile, error) {
	if len(bytes.TrimSpace(patch)) == 0 {
		return nil, nil
	}
	files, _, err := gitdiff.Parse(bytes.NewReader(patch))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	out := make([]ChangedFile, 0, len(files))
	for _, f := range files {
		cf := ChangedFile{Path: f.NewName, Deleted: f.IsDelete}
		if cf.Deleted || cf.Path == "" {
			cf.Path = f.OldName
		}
		for _, frag := range f.TextFragments {
			for _, line := range frag.Lines {
				if line.Op == gitdiff.OpAdd {
					cf.Added = append(cf.Added, trimNewline(line.Line))
				}
			}
		}
		out = append(out, cf)
	}
	return out, nil
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
		if n := len(s); n > 0 && s[n-1] == '\r' {
			s = s[:n-1]
		}
	}
	return s
}
