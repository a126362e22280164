// Package git answers the few version-control questions the context hook
// asks. Every call goes through a runner.Runner with a timeout; callers
// treat any error as "no information".
package git

import (
	"context"
	"strings"
	"time"

	"github.com/dgerlanc/hookgate/internal/constants"
	"github.com/dgerlanc/hookgate/internal/runner"
)

// Client runs git in a fixed working directory.
type Client struct {
	runner  runner.Runner
	dir     string
	timeout time.Duration
}

// New returns a Client for dir. A zero timeout uses the package default.
func New(r runner.Runner, dir string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultGitTimeout
	}
	return &Client{runner: r, dir: dir, timeout: timeout}
}

// Status is the branch summary shown in the context line.
type Status struct {
	Branch string
	// Dirty is only meaningful when Known is true.
	Dirty bool
	Known bool
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	res := c.runner.Run(ctx, c.dir, c.timeout, "git", args...)
	if !res.OK() {
		return nil, res.Err
	}
	return res.Stdout, nil
}

// Branch returns the current branch name. It is empty on a detached HEAD.
func (c *Client) Branch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Dirty reports whether the working tree has uncommitted changes,
// untracked files included.
func (c *Client) Dirty(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// Status combines Branch and Dirty. ok is false when there is no branch to
// report. A failed status query still yields the branch with Known false.
func (c *Client) Status(ctx context.Context) (Status, bool) {
	branch, err := c.Branch(ctx)
	if err != nil || branch == "" {
		return Status{}, false
	}
	st := Status{Branch: branch}
	if dirty, err := c.Dirty(ctx); err == nil {
		st.Dirty = dirty
		st.Known = true
	}
	return st, true
}

var diffFlags = []string{"--no-color", "--no-ext-diff", "-U0"}

// StagedDiff returns the patch of changes staged in the index.
func (c *Client) StagedDiff(ctx context.Context) ([]byte, error) {
	args := append([]string{"diff", "--cached"}, diffFlags...)
	return c.run(ctx, args...)
}

// LastCommitDiff returns the patch introduced by HEAD. It fails in a
// repository with a single commit.
func (c *Client) LastCommitDiff(ctx context.Context) ([]byte, error) {
	args := append([]string{"diff"}, diffFlags...)
	args = append(args, "HEAD~1", "HEAD")
	return c.run(ctx, args...)
}
