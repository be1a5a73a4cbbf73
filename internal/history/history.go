// Package history reads commit metadata from the repository being pushed
// to and resolves which user is responsible for a ref update.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/gitgate/internal/model"
)

var (
	// ErrLookupFailed wraps any failure of the underlying history store.
	ErrLookupFailed = errors.New("history lookup failed")

	// ErrEmptyRange is returned when a revision range holds no commits.
	ErrEmptyRange = errors.New("no commits in revision range")
)

// History is the narrow view of a repository the gate needs.
type History interface {
	// FirstParentCommits lists the commits of rng following first parents
	// only, most recent first. An empty range yields an empty list.
	FirstParentCommits(ctx context.Context, rng model.RevisionRange) ([]string, error)

	// Commit returns the metadata of a single revision.
	Commit(ctx context.Context, rev string) (model.Commit, error)
}

// ResolveIdentity finds the user credited with a ref update: the committer
// of the newest first-parent commit in rng. The branch comes from the ref
// being updated, not from commit content.
func ResolveIdentity(ctx context.Context, h History, u model.RefUpdate, rng model.RevisionRange) (model.Identity, error) {
	revs, err := h.FirstParentCommits(ctx, rng)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: list %s: %w", ErrLookupFailed, rng, err)
	}
	if len(revs) == 0 {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrEmptyRange, rng)
	}

	commit, err := h.Commit(ctx, revs[0])
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: read commit %s: %w", ErrLookupFailed, revs[0], err)
	}

	return model.Identity{
		Committer: commit.CommitterName,
		Branch:    model.BranchName(u.Ref),
		Commit:    commit,
	}, nil
}
