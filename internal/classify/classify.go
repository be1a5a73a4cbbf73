// Package classify derives what a ref update asks for from its old and new
// object ids.
package classify

import (
	"strings"

	"github.com/ppiankov/gitgate/internal/model"
)

// Classify returns the action kind of a ref update and the revision range
// whose history identifies who is responsible for it.
//
// Rules, first match wins:
//  1. old is zero: CreateBranch over the new tip alone
//  2. new is zero: DeleteBranch over the old tip alone
//  3. otherwise:   PushCommits over old..new
func Classify(u model.RefUpdate) (model.ActionKind, model.RevisionRange) {
	if u.Old.IsZero() {
		return model.CreateBranch, model.RevisionRange{To: u.New}
	}
	if u.New.IsZero() {
		return model.DeleteBranch, model.RevisionRange{To: u.Old}
	}
	return model.PushCommits, model.RevisionRange{From: u.Old, To: u.New}
}

// IsTag reports whether the update targets a tag.
func IsTag(u model.RefUpdate) bool {
	return strings.HasPrefix(u.Ref, "refs/tags")
}
