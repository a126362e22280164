package settings

import (
	"errors"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrUnparseable is returned when a hook command cannot be parsed.
var ErrUnparseable = errors.New("unparseable command")

// wrapperCommands run their arguments as the real command.
var wrapperCommands = map[string]bool{
	"env": true, "exec": true, "nice": true, "nohup": true, "timeout": true, "command": true,
}

// Executables returns the program each simple command in cmd would run,
// looking through wrappers such as env and timeout. Words that are not
// literal (e.g. "$CLAUDE_PROJECT_DIR/bin/hookgate") are returned as printed.
func Executables(cmd string) ([]string, error) {
	if strings.TrimSpace(cmd) == "" {
		return nil, nil
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd), "")
	if err != nil {
		return nil, ErrUnparseable
	}

	var names []string
	printer := syntax.NewPrinter()
	syntax.Walk(prog, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		if name := executable(call.Args, printer); name != "" {
			names = append(names, name)
		}
		return true
	})
	return names, nil
}

func executable(args []*syntax.Word, printer *syntax.Printer) string {
	for i := 0; i < len(args); i++ {
		word := wordString(args[i], printer)
		if !wrapperCommands[word] {
			return word
		}
		// Skip the wrapper's own options and arguments: flags, VAR=value
		// pairs and a timeout duration.
		for i+1 < len(args) {
			next := wordString(args[i+1], printer)
			if strings.HasPrefix(next, "-") || strings.Contains(next, "=") || (word == "timeout" && isDuration(next)) {
				i++
				continue
			}
			break
		}
	}
	return ""
}

var durationPattern = regexp.MustCompile(`^[0-9.]+[smhd]?$`)

func isDuration(s string) bool {
	return durationPattern.MatchString(s)
}

func wordString(w *syntax.Word, printer *syntax.Printer) string {
	if lit := w.Lit(); lit != "" {
		return lit
	}
	var buf strings.Builder
	printer.Print(&buf, w)
	return quoteStripper.Replace(buf.String())
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

// substitutionPattern matches command substitution syntax
var substitutionPattern = regexp.MustCompile(`\$\(|` + "`")

// byteRange represents a range of bytes in a string
type byteRange struct {
	start, end int
}

// findQuotedHeredocRanges parses a command and returns byte ranges of heredoc content
// where the delimiter is quoted (single or double quotes). Quoted heredocs don't perform
// shell expansion, so backticks and $() inside them are literal text.
func findQuotedHeredocRanges(cmd string) []byteRange {
	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd), "")
	if err != nil {
		return nil
	}

	var ranges []byteRange
	syntax.Walk(prog, func(node syntax.Node) bool {
		redir, ok := node.(*syntax.Redirect)
		if !ok || (redir.Op != syntax.Hdoc && redir.Op != syntax.DashHdoc) {
			return true
		}
		if redir.Word == nil || redir.Hdoc == nil {
			return true
		}
		for _, part := range redir.Word.Parts {
			switch part.(type) {
			case *syntax.SglQuoted, *syntax.DblQuoted:
				start := int(redir.Hdoc.Pos().Offset())
				end := int(redir.Hdoc.End().Offset())
				if start < end && start >= 0 && end <= len(cmd) {
					ranges = append(ranges, byteRange{start: start, end: end})
				}
				return true
			}
		}
		return true
	})
	return ranges
}

// ContainsSubstitution reports whether cmd uses $(...) or backticks outside
// quoted heredocs. Hook commands with substitutions depend on the shell
// state of the host.
func ContainsSubstitution(cmd string) bool {
	exclude := findQuotedHeredocRanges(cmd)
	for _, m := range substitutionPattern.FindAllStringIndex(cmd, -1) {
		inside := false
		for _, r := range exclude {
			if m[0] >= r.start && m[0] < r.end {
				inside = true
				break
			}
		}
		if !inside {
			return true
		}
	}
	return false
}
