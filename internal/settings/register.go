package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgerlanc/hookgate/internal/constants"
)

// Host event names.
const (
	EventPreToolUse       = "PreToolUse"
	EventUserPromptSubmit = "UserPromptSubmit"
)

// Hook is a command to register under an event.
type Hook struct {
	Event   string
	Matcher string
	Command string
}

// DefaultHooks wires both hookgate hooks.
var DefaultHooks = []Hook{
	{Event: EventPreToolUse, Matcher: "Write|Edit|MultiEdit|NotebookEdit", Command: constants.AppName + " guard"},
	{Event: EventUserPromptSubmit, Command: constants.AppName + " context"},
}

// IsRegistered reports whether raw settings already run h.Command for
// h.Event, under any matcher.
func IsRegistered(raw map[string]any, h Hook) bool {
	hooks, ok := raw["hooks"].(map[string]any)
	if !ok {
		return false
	}
	entries, ok := hooks[h.Event].([]any)
	if !ok {
		return false
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		cmds, ok := entry["hooks"].([]any)
		if !ok {
			continue
		}
		for _, c := range cmds {
			cmd, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := cmd["command"].(string); ok && strings.TrimSpace(s) == h.Command {
				return true
			}
		}
	}
	return false
}

// AddHook adds h to raw settings and returns the result. Other keys, events
// and matchers are preserved. A nil map is treated as empty.
func AddHook(raw map[string]any, h Hook) map[string]any {
	if raw == nil {
		raw = make(map[string]any)
	}
	hooks, ok := raw["hooks"].(map[string]any)
	if !ok {
		hooks = make(map[string]any)
		raw["hooks"] = hooks
	}
	entries, _ := hooks[h.Event].([]any)

	command := map[string]any{"type": "command", "command": h.Command}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		matcher, _ := entry["matcher"].(string)
		if matcher != h.Matcher {
			continue
		}
		cmds, _ := entry["hooks"].([]any)
		entry["hooks"] = append(cmds, command)
		return raw
	}

	entry := map[string]any{"hooks": []any{command}}
	if h.Matcher != "" {
		entry["matcher"] = h.Matcher
	}
	hooks[h.Event] = append(entries, entry)
	return raw
}

// Register adds every hook missing from the settings file at path and
// returns the ones it added. A missing file is created. The file is only
// rewritten when something was added.
func Register(path string, hooks []Hook) ([]Hook, error) {
	raw := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: invalid JSON: %w", path, err)
		}
		if raw == nil {
			raw = make(map[string]any)
		}
	}

	var added []Hook
	for _, h := range hooks {
		if IsRegistered(raw, h) {
			continue
		}
		raw = AddHook(raw, h)
		added = append(added, h)
	}
	if len(added) == 0 {
		return nil, nil
	}

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(path, append(out, '\n'), constants.FileMode); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return added, nil
}
