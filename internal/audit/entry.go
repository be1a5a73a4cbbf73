package audit

import (
	"github.com/google/uuid"

	"github.com/ppiankov/gitgate/internal/model"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// RefUpdate is the flattened ref update recorded in each entry.
type RefUpdate struct {
	Ref string `json:"ref"`
	Old string `json:"old"`
	New string `json:"new"`
}

// Entry is one line in the hash-chained JSONL audit log.
// All fields are structs (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  string    `json:"ts"`
	Update     RefUpdate `json:"update"`
	Action     string    `json:"action"`
	Committer  string    `json:"committer"`
	Commit     string    `json:"commit"`
	Branch     string    `json:"branch"`
	Role       string    `json:"role"`
	Decision   string    `json:"decision"`
	Reason     string    `json:"reason"`
	PolicyHash string    `json:"policy_hash"`
	PrevHash   string    `json:"prev_hash"`
}

// EntryFromResult flattens a gate decision into an audit entry.
func EntryFromResult(r model.Result, policyHash string) Entry {
	return Entry{
		ID: uuid.NewString(),
		Update: RefUpdate{
			Ref: r.Update.Ref,
			Old: string(r.Update.Old),
			New: string(r.Update.New),
		},
		Action:     r.Action.String(),
		Committer:  r.Identity.Committer,
		Commit:     r.Identity.Commit.ID,
		Branch:     r.Identity.Branch,
		Role:       r.Role,
		Decision:   string(r.Decision),
		Reason:     r.Reason,
		PolicyHash: policyHash,
	}
}
