// Package patterns provides functions for building regex patterns
// to match file paths and prompt keywords in a structured way.
package patterns

import (
	"regexp"
	"strings"
)

// Pattern holds a compiled regex and its description.
type Pattern struct {
	Regex   *regexp.Regexp
	Name    string
	Type    string // path, keyword, log
	Pattern string // original pattern string
}

// MatchString reports whether s matches the pattern.
func (p Pattern) MatchString(s string) bool {
	return p.Regex != nil && p.Regex.MatchString(s)
}

// BuildKeywordPattern builds a case-insensitive regex that matches any of the
// keywords anywhere in the text, so "fix" matches both "fixing" and "prefix".
// Multi-word keywords ("help me") keep their inner whitespace flexible.
// Returns "" when there are no usable keywords.
func BuildKeywordPattern(keywords []string) string {
	var alts []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		words := strings.Fields(kw)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return ""
	}
	return `(?i)(?:` + strings.Join(alts, "|") + `)`
}

// Compile compiles a pattern string into a Pattern with the given name.
// Returns an error if the pattern is invalid.
func Compile(pattern, name string) (Pattern, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Regex: re, Name: name, Pattern: pattern}, nil
}

// CompileKeywords compiles a keyword list into a single named Pattern.
// An empty list yields a Pattern that never matches.
func CompileKeywords(name string, keywords []string) (Pattern, error) {
	expr := BuildKeywordPattern(keywords)
	if expr == "" {
		return Pattern{Name: name, Type: "keyword"}, nil
	}
	p, err := Compile(expr, name)
	if err != nil {
		return Pattern{}, err
	}
	p.Type = "keyword"
	return p, nil
}
