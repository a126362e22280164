// Package event decodes the JSON event a host passes to a hook on stdin.
package event

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/logger"
)

// Kind identifies which hook an event is for.
type Kind int

const (
	KindFileOperation Kind = iota
	KindPromptSubmission
)

func (k Kind) String() string {
	switch k {
	case KindFileOperation:
		return "file_operation"
	case KindPromptSubmission:
		return "prompt_submission"
	default:
		return "unknown"
	}
}

// Event is one decoded hook invocation. Path is set for file operations,
// Prompt for prompt submissions.
type Event struct {
	Kind          Kind
	Path          string
	Prompt        string
	SessionID     string
	Cwd           string
	HookEventName string
	ToolName      string
}

// Input mirrors the JSON the host writes to stdin. Only the fields hookgate
// reads are declared.
//
// See: https://docs.anthropic.com/en/docs/claude-code/hooks
type Input struct {
	SessionID      string        `json:"session_id"`
	TranscriptPath string        `json:"transcript_path"`
	Cwd            string        `json:"cwd"`
	HookEventName  string        `json:"hook_event_name"`
	ToolName       string        `json:"tool_name"`
	ToolInput      ToolInputData `json:"tool_input"`
	Prompt         string        `json:"prompt"`
}

// ToolInputData carries the target of Write, Edit, MultiEdit and
// NotebookEdit tool calls.
type ToolInputData struct {
	FilePath     string `json:"file_path"`
	NotebookPath string `json:"notebook_path"`
	Path         string `json:"path"`
}

// TargetPath returns the first non-empty path field.
func (t ToolInputData) TargetPath() string {
	for _, p := range []string{t.FilePath, t.NotebookPath, t.Path} {
		if strings.TrimSpace(p) != "" {
			return p
		}
	}
	return ""
}

// Decode reads one event of the given kind from r. It never returns an
// error: malformed, oversized or incomplete input yields ok == false and the
// cause is logged at debug level.
func Decode(r io.Reader, kind Kind) (ev Event, ok bool) {
	data, err := io.ReadAll(io.LimitReader(r, constants.MaxInputSize+1))
	if err != nil {
		logger.Debug("failed to read input", "error", err)
		return Event{}, false
	}
	if len(data) > constants.MaxInputSize {
		logger.Debug("input too large", "limit", constants.MaxInputSize)
		return Event{}, false
	}
	return DecodeBytes(data, kind)
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte, kind Kind) (Event, bool) {
	var input Input
	if err := json.Unmarshal(data, &input); err != nil {
		logger.Debug("failed to decode input", "error", err)
		return Event{}, false
	}

	ev := Event{
		Kind:          kind,
		SessionID:     input.SessionID,
		Cwd:           input.Cwd,
		HookEventName: input.HookEventName,
		ToolName:      input.ToolName,
	}

	switch kind {
	case KindFileOperation:
		ev.Path = input.ToolInput.TargetPath()
		if ev.Path == "" {
			logger.Debug("no file path in input", "tool", input.ToolName)
			return Event{}, false
		}
	case KindPromptSubmission:
		ev.Prompt = input.Prompt
		if strings.TrimSpace(ev.Prompt) == "" {
			logger.Debug("no prompt in input")
			return Event{}, false
		}
	default:
		logger.Debug("unknown event kind", "kind", int(kind))
		return Event{}, false
	}

	logger.Debug("decoded event", "kind", kind.String(), "tool", ev.ToolName, "session", ev.SessionID)
	return ev, true
}
