package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgerlanc/hookgate/internal/config"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)
	return NewDetector(cfg.Intents)
}

func TestDetect(t *testing.T) {
	d := newDetector(t)

	tests := []struct {
		name   string
		prompt string
		want   Set
	}{
		{"empty", "", Set{General}},
		{"whitespace", "   ", Set{General}},
		{"no keywords", "hello there", Set{General}},
		{"debug", "why is this failing with an exception", Set{Debug}},
		{"prefix match", "there are errors in the output", Set{Debug}},
		{"inside a word", "strip the prefix from names", Set{Debug}},
		{"rebuild", "rebuild the search index", Set{Feature}},
		{"end of a word", "please readd the handler", Set{Feature}},
		{"case insensitive", "FIX THE BUG", Set{Debug}},
		{"multi word keyword", "the login is not   working", Set{Debug}},
		{"architecture", "give me an overview of the system design", Set{Architecture}},
		{"feature", "implement a new export button", Set{Feature}},
		{"review", "review this for performance", Set{Review}},
		{"fixed order", "review the design and fix the crash, then add tests", Set{Debug, Architecture, Feature, Review}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.prompt))
		})
	}
}

func TestDetectIsTotal(t *testing.T) {
	d := newDetector(t)
	for _, p := range []string{"", "\x00", "🙂", "....", "a\nb\tc"} {
		assert.NotEmpty(t, d.Detect(p), "prompt %q", p)
	}

	empty := NewDetector(nil)
	assert.Equal(t, Set{General}, empty.Detect("fix the bug"))
}

func TestSetHelpers(t *testing.T) {
	s := Set{Debug, Review}

	assert.True(t, s.Has(Debug))
	assert.False(t, s.Has(Feature))
	assert.Equal(t, []string{"debug", "review"}, s.Strings())
	assert.Equal(t, "debug,review", s.String())
}
