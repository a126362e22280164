package inject

import (
	"strings"
)

// Separator joins fragments on the context line.
const Separator = " | "

// Bundle is an ordered list of single-line context fragments.
type Bundle struct {
	fragments []string
}

// Add appends a fragment. Runs of whitespace, line breaks included, collapse
// to one space and blank fragments are dropped.
func (b *Bundle) Add(fragment string) {
	fragment = strings.Join(strings.Fields(fragment), " ")
	if fragment == "" {
		return
	}
	b.fragments = append(b.fragments, fragment)
}

// AddLabeled appends label followed by value, skipping empty values.
func (b *Bundle) AddLabeled(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.Add(label + value)
}

// Len returns the number of fragments.
func (b *Bundle) Len() int {
	return len(b.fragments)
}

func (b *Bundle) String() string {
	return strings.Join(b.fragments, Separator)
}
