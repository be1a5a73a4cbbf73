package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedObjectID is returned when an object id is neither hex of a
	// known hash length nor the all-zero sentinel.
	ErrMalformedObjectID = errors.New("malformed object id")

	// ErrAmbiguousUpdate is returned when both ids are the all-zero sentinel.
	// Git never sends such an update; it is not a valid push.
	ErrAmbiguousUpdate = errors.New("ambiguous ref update: old and new are both zero")
)

// Well-known ref namespaces.
const (
	HeadsPrefix   = "refs/heads/"
	TagsPrefix    = "refs/tags/"
	RemotesPrefix = "refs/remotes/"
)

// ObjectID is a git object name as sent to hooks: SHA-1 (40 hex) or
// SHA-256 (64 hex), or an all-zero string meaning "no object".
type ObjectID string

// IsZero reports whether the id is the all-zero sentinel.
func (id ObjectID) IsZero() bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		if c != '0' {
			return false
		}
	}
	return true
}

// Valid reports whether the id has a hash length and only hex digits.
func (id ObjectID) Valid() bool {
	if len(id) != 40 && len(id) != 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Short returns the first 7 characters of the id.
func (id ObjectID) Short() string {
	if len(id) <= 7 {
		return string(id)
	}
	return string(id[:7])
}

// RefUpdate is one (old, new, ref) triple as passed to an update hook.
type RefUpdate struct {
	Ref string   `json:"ref"`
	Old ObjectID `json:"old"`
	New ObjectID `json:"new"`
}

// ParseRefUpdate builds a RefUpdate from the raw hook arguments.
func ParseRefUpdate(ref, oldID, newID string) (RefUpdate, error) {
	u := RefUpdate{
		Ref: strings.TrimSpace(ref),
		Old: ObjectID(strings.TrimSpace(oldID)),
		New: ObjectID(strings.TrimSpace(newID)),
	}
	if err := u.Validate(); err != nil {
		return RefUpdate{}, err
	}
	return u, nil
}

// Validate checks the RefUpdate invariants.
func (u RefUpdate) Validate() error {
	if u.Ref == "" {
		return fmt.Errorf("empty ref name")
	}
	if !u.Old.Valid() {
		return fmt.Errorf("old %q: %w", u.Old, ErrMalformedObjectID)
	}
	if !u.New.Valid() {
		return fmt.Errorf("new %q: %w", u.New, ErrMalformedObjectID)
	}
	if u.Old.IsZero() && u.New.IsZero() {
		return ErrAmbiguousUpdate
	}
	return nil
}

// BranchName strips the well-known ref prefixes from a ref name.
// Only one prefix is expected to match.
func BranchName(ref string) string {
	for _, prefix := range []string{HeadsPrefix, TagsPrefix, RemotesPrefix} {
		ref = strings.TrimPrefix(ref, prefix)
	}
	return ref
}

// ActionKind is what a ref update asks the server to do.
type ActionKind int

const (
	CreateBranch ActionKind = iota + 1
	DeleteBranch
	PushCommits
)

func (k ActionKind) String() string {
	switch k {
	case CreateBranch:
		return "create_branch"
	case DeleteBranch:
		return "delete_branch"
	case PushCommits:
		return "push_commits"
	case 0:
		return "unknown"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// RevisionRange is the set of commits a history query walks.
// An empty From means a single endpoint: everything reachable from To.
type RevisionRange struct {
	From ObjectID `json:"from,omitempty"`
	To   ObjectID `json:"to"`
}

// Single reports whether the range collapses to one endpoint.
func (r RevisionRange) Single() bool {
	return r.From == ""
}

// String renders the range in git revision syntax.
func (r RevisionRange) String() string {
	if r.Single() {
		return string(r.To)
	}
	return string(r.From) + ".." + string(r.To)
}

// Commit is the metadata of one commit.
type Commit struct {
	ID             string `json:"id"`
	ShortID        string `json:"short_id"`
	AuthorName     string `json:"author_name"`
	AuthorEmail    string `json:"author_email"`
	CommitterName  string `json:"committer_name"`
	CommitterEmail string `json:"committer_email"`
}

// Identity is the user credited with a ref update and the branch it touches.
type Identity struct {
	Committer string `json:"committer"`
	Branch    string `json:"branch"`
	Commit    Commit `json:"commit"`
}

// Decision is the enforcement outcome.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// Result is the full outcome of one authorization decision.
type Result struct {
	Decision Decision   `json:"decision"`
	Reason   string     `json:"reason"`
	Update   RefUpdate  `json:"update"`
	Action   ActionKind `json:"-"`
	IsTag    bool       `json:"is_tag"`
	Identity Identity   `json:"identity"`
	Role     string     `json:"role"`
	Err      error      `json:"-"`
}

// Allowed reports whether the decision permits the update.
func (r Result) Allowed() bool {
	return r.Decision == Allow
}
