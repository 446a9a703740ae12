// Package mercurial drives a local Mercurial working copy via the hg binary.
package mercurial

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Repo executes hg commands against a single working copy. The working copy
// is a shared mutable resource: callers must not run operations concurrently.
type Repo struct {
	path string
}

// NewRepo creates a driver for the working copy at path.
func NewRepo(path string) *Repo {
	return &Repo{path: path}
}

// Identify checks that ref resolves in the repository.
func (r *Repo) Identify(ctx context.Context, ref string) error {
	return r.run(ctx, nil, "identify", "--rev", ref)
}

// Checkout updates the working copy to ref, discarding local changes.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	return r.run(ctx, nil, "update", "--clean", "--rev", ref)
}

// Import applies a patch as a single commit with the given message and user.
func (r *Repo) Import(ctx context.Context, patch []byte, message, user string) error {
	return r.run(ctx, patch, "import", "-", "--message", message, "--user", user)
}

func (r *Repo) run(ctx context.Context, stdin []byte, args ...string) error {
	args = append([]string{"--cwd", r.path}, args...)
	cmd := exec.CommandContext(ctx, "hg", args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		msg := bytes.TrimSpace(output)
		if len(msg) == 0 {
			return fmt.Errorf("hg %s failed: %w", args[2], err)
		}
		return fmt.Errorf("hg %s failed: %s", args[2], msg)
	}
	return nil
}
