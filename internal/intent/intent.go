// Package intent classifies a prompt into a closed set of intents by
// keyword membership.
package intent

import (
	"strings"

	"github.com/dgerlanc/hookgate/internal/config"
)

// Intent is one class of user request.
type Intent string

const (
	Debug        Intent = "debug"
	Architecture Intent = "architecture"
	Feature      Intent = "feature"
	Review       Intent = "review"
	General      Intent = "general"
)

// Set is the ordered, non-empty result of Detect.
type Set []Intent

// Has reports whether the set contains in.
func (s Set) Has(in Intent) bool {
	for _, x := range s {
		if x == in {
			return true
		}
	}
	return false
}

// Strings returns the intent names.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = string(x)
	}
	return out
}

func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}

// Detector matches prompts against the configured keyword classes.
type Detector struct {
	intents []config.Intent
}

// NewDetector returns a Detector over the configured intents, evaluated in
// the order given.
func NewDetector(intents []config.Intent) *Detector {
	return &Detector{intents: intents}
}

// Detect returns every matching intent in configuration order, or
// {general} when none match. It is total: "" yields {general}.
func (d *Detector) Detect(prompt string) Set {
	var set Set
	for _, in := range d.intents {
		if in.Pattern.MatchString(prompt) {
			set = append(set, Intent(in.Name))
		}
	}
	if len(set) == 0 {
		return Set{General}
	}
	return set
}
