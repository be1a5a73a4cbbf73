package gate

import (
	"sync"

	"github.com/ppiankov/gitgate/internal/policy"
)

// PolicyStore supplies the policy document and the hash recorded with
// each decision.
type PolicyStore interface {
	Load() (*policy.Document, string, error)
}

// PolicyFile loads a policy file once and serves it for the rest of the
// process, so every update in one push sees the same document.
type PolicyFile struct {
	Path string

	once sync.Once
	doc  *policy.Document
	hash string
	err  error
}

// NewPolicyFile returns a store reading path. Empty uses policy.DefaultPath.
func NewPolicyFile(path string) *PolicyFile {
	return &PolicyFile{Path: path}
}

// Load implements PolicyStore.
func (p *PolicyFile) Load() (*policy.Document, string, error) {
	p.once.Do(func() {
		p.doc, p.hash, p.err = policy.LoadWithHash(p.Path)
	})
	return p.doc, p.hash, p.err
}

// StaticPolicy serves an in-memory document.
type StaticPolicy struct {
	Doc  *policy.Document
	Hash string
}

// Load implements PolicyStore.
func (s StaticPolicy) Load() (*policy.Document, string, error) {
	return s.Doc, s.Hash, nil
}
