// Package settings reads the host's project settings file
// (.claude/settings.json) and inspects the hook commands it registers.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgerlanc/hookgate/internal/constants"
)

// Settings is the subset of settings.json that matters for hooks. Unknown
// sections are kept by name only.
type Settings struct {
	Hooks    map[string][]Matcher `json:"hooks"`
	Sections []string             `json:"-"`
}

// Matcher groups hook commands under a tool matcher such as "Write|Edit".
type Matcher struct {
	Matcher string    `json:"matcher,omitempty"`
	Hooks   []Command `json:"hooks"`
}

// Command is one registered hook command.
type Command struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// Registration is a Command together with where it is registered.
type Registration struct {
	Event   string
	Matcher string
	Command
}

// Path returns the settings file path for a project root.
func Path(root string) string {
	return filepath.Join(root, constants.ClaudeConfigDir, constants.ClaudeSettingsFile)
}

// Load reads and decodes a settings file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes settings JSON.
func Parse(data []byte) (*Settings, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	s := &Settings{}
	for name := range raw {
		s.Sections = append(s.Sections, name)
	}
	sort.Strings(s.Sections)

	if hooks, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hooks, &s.Hooks); err != nil {
			return nil, fmt.Errorf("invalid hooks section: %w", err)
		}
	}
	return s, nil
}

// HasSection reports whether the top-level section exists.
func (s *Settings) HasSection(name string) bool {
	i := sort.SearchStrings(s.Sections, name)
	return i < len(s.Sections) && s.Sections[i] == name
}

// Registrations lists every command hook, ordered by event name.
func (s *Settings) Registrations() []Registration {
	events := make([]string, 0, len(s.Hooks))
	for event := range s.Hooks {
		events = append(events, event)
	}
	sort.Strings(events)

	var regs []Registration
	for _, event := range events {
		for _, m := range s.Hooks[event] {
			for _, c := range m.Hooks {
				if c.Type != "" && c.Type != "command" {
					continue
				}
				regs = append(regs, Registration{Event: event, Matcher: m.Matcher, Command: c})
			}
		}
	}
	return regs
}

// UsesProjectDir reports whether the command refers to $CLAUDE_PROJECT_DIR.
func (r Registration) UsesProjectDir() bool {
	return strings.Contains(r.Command.Command, "$"+constants.EnvProjectDir) ||
		strings.Contains(r.Command.Command, "${"+constants.EnvProjectDir+"}")
}
