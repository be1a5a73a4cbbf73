package history

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/gitgate/internal/model"
)

// commitFormat selects, NUL separated: full id, short id, author name,
// author email, committer name, committer email.
const commitFormat = "%H%x00%h%x00%an%x00%ae%x00%cn%x00%ce"

// Git implements History by running the git binary. Hooks inherit GIT_DIR
// from git itself, so Dir is normally empty.
type Git struct {
	Binary string
	Dir    string

	// MaxCount bounds how many commits FirstParentCommits returns.
	// Zero means no limit.
	MaxCount int

	// Timeout bounds each git invocation. Zero means no timeout.
	Timeout time.Duration
}

// NewGit returns a Git history reader. An empty binary means "git" on PATH.
func NewGit(binary, dir string, timeout time.Duration) *Git {
	if binary == "" {
		binary = "git"
	}
	return &Git{Binary: binary, Dir: dir, Timeout: timeout}
}

// FirstParentCommits runs `git rev-list --first-parent <range>`.
func (g *Git) FirstParentCommits(ctx context.Context, rng model.RevisionRange) ([]string, error) {
	args := []string{"rev-list", "--first-parent"}
	if g.MaxCount > 0 {
		args = append(args, "--max-count="+strconv.Itoa(g.MaxCount))
	}
	args = append(args, rng.String(), "--")

	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var revs []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		revs = append(revs, fields[0])
	}
	return revs, nil
}

// Commit runs `git log -1` with a NUL separated format.
func (g *Git) Commit(ctx context.Context, rev string) (model.Commit, error) {
	out, err := g.run(ctx, "log", "-1", "--pretty=format:"+commitFormat, rev, "--")
	if err != nil {
		return model.Commit{}, err
	}

	fields := strings.Split(strings.TrimRight(string(out), "\n"), "\x00")
	if len(fields) != 6 {
		return model.Commit{}, fmt.Errorf("unexpected git log output for %s: %d fields", rev, len(fields))
	}

	return model.Commit{
		ID:             fields[0],
		ShortID:        fields[1],
		AuthorName:     fields[2],
		AuthorEmail:    fields[3],
		CommitterName:  fields[4],
		CommitterEmail: fields[5],
	}, nil
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	sub := args[0]
	if g.Dir != "" {
		args = append([]string{"--git-dir", g.Dir}, args...)
	}

	cmd := exec.CommandContext(ctx, g.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("git %s: %w", sub, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("git %s: %w", sub, err)
		}
		return nil, fmt.Errorf("git %s: %w: %s", sub, err, msg)
	}
	return stdout.Bytes(), nil
}
