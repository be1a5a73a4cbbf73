package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/gitgate/internal/model"
)

// Memory is an in-memory commit graph implementing History.
type Memory struct {
	mu      sync.RWMutex
	commits map[string]memCommit

	// Err, when set, is returned by every call.
	Err error
}

type memCommit struct {
	commit  model.Commit
	parents []string
}

// NewMemory returns an empty commit graph.
func NewMemory() *Memory {
	return &Memory{commits: make(map[string]memCommit)}
}

// Add records a commit with its parents, first parent first.
func (m *Memory) Add(c model.Commit, parents ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ShortID == "" {
		c.ShortID = model.ObjectID(c.ID).Short()
	}
	m.commits[c.ID] = memCommit{commit: c, parents: parents}
}

// FirstParentCommits walks first parents from rng.To, stopping at the first
// commit reachable from rng.From through any parent.
func (m *Memory) FirstParentCommits(ctx context.Context, rng model.RevisionRange) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.commits[string(rng.To)]; !ok {
		return nil, fmt.Errorf("bad revision %q", rng.To)
	}

	excluded := make(map[string]bool)
	if !rng.Single() {
		if _, ok := m.commits[string(rng.From)]; !ok {
			return nil, fmt.Errorf("bad revision %q", rng.From)
		}
		m.markReachable(string(rng.From), excluded)
	}

	var revs []string
	for id := string(rng.To); id != ""; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if excluded[id] {
			break
		}
		c, ok := m.commits[id]
		if !ok {
			break
		}
		revs = append(revs, id)
		if len(c.parents) == 0 {
			break
		}
		id = c.parents[0]
	}
	return revs, nil
}

// Commit returns the recorded metadata of rev.
func (m *Memory) Commit(_ context.Context, rev string) (model.Commit, error) {
	if m.Err != nil {
		return model.Commit{}, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.commits[rev]
	if !ok {
		return model.Commit{}, fmt.Errorf("unknown revision %q", rev)
	}
	return c.commit, nil
}

func (m *Memory) markReachable(start string, seen map[string]bool) {
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := m.commits[id]; ok {
			stack = append(stack, c.parents...)
		}
	}
}
