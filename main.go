// hookgate - Claude Code hooks for file-write security and prompt context
//
// The guard hook blocks Write/Edit tool calls that target sensitive files
// (key material, credentials, secrets directories, path traversal). The
// context hook prints a one-line summary of the project state for each
// prompt.
//
// Usage in .claude/settings.json:
//
//	"hooks": {
//	  "PreToolUse": [{
//	    "matcher": "Write|Edit|MultiEdit|NotebookEdit",
//	    "hooks": [{"type": "command", "command": "hookgate guard"}]
//	  }],
//	  "UserPromptSubmit": [{
//	    "hooks": [{"type": "command", "command": "hookgate context"}]
//	  }]
//	}
//
// Test:
//
//	echo '{"tool_name": "Write", "tool_input": {"file_path": ".env"}}' | hookgate guard
package main

import (
	"os"

	"github.com/dgerlanc/hookgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
