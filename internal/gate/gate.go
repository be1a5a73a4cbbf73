// Package gate runs the full authorization pipeline for ref updates behind
// a single fail-closed boundary: any error or panic becomes a deny.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/gitgate/internal/audit"
	"github.com/ppiankov/gitgate/internal/classify"
	"github.com/ppiankov/gitgate/internal/history"
	"github.com/ppiankov/gitgate/internal/model"
	"github.com/ppiankov/gitgate/internal/policy"
)

// ErrInternal marks a recovered panic.
var ErrInternal = errors.New("internal error")

// Recorder persists decisions. *audit.Log implements it.
type Recorder interface {
	Record(entry audit.Entry) error
}

// Gate decides ref updates against a policy using repository history.
type Gate struct {
	history history.History
	policy  PolicyStore
	audit   Recorder
	log     zerolog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithAudit records every decision. A failed write turns the decision
// into a deny.
func WithAudit(r Recorder) Option {
	return func(g *Gate) { g.audit = r }
}

// WithLogger sets the diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// New returns a Gate over the given collaborators.
func New(h history.History, p PolicyStore, opts ...Option) *Gate {
	g := &Gate{
		history: h,
		policy:  p,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decide authorizes one update-hook triple. It never returns an allow
// unless every step succeeded and the resolved role permits the action.
func (g *Gate) Decide(ctx context.Context, ref, oldID, newID string) (result model.Result) {
	var policyHash string
	result = model.Result{
		Decision: model.Deny,
		Update:   model.RefUpdate{Ref: ref, Old: model.ObjectID(oldID), New: model.ObjectID(newID)},
	}

	defer func() {
		if r := recover(); r != nil {
			result = deny(result, fmt.Errorf("%w: %v", ErrInternal, r))
		}
		result = g.finish(result, policyHash)
	}()

	result, policyHash = g.decide(ctx, result, ref, oldID, newID)
	return result
}

func (g *Gate) decide(ctx context.Context, result model.Result, ref, oldID, newID string) (model.Result, string) {
	u, err := model.ParseRefUpdate(ref, oldID, newID)
	if err != nil {
		return deny(result, err), ""
	}
	result.Update = u

	action, rng := classify.Classify(u)
	result.Action = action
	result.IsTag = classify.IsTag(u)

	identity, err := history.ResolveIdentity(ctx, g.history, u, rng)
	if err != nil {
		return deny(result, err), ""
	}
	result.Identity = identity

	doc, hash, err := g.policy.Load()
	if err != nil {
		return deny(result, err), ""
	}

	result.Role = doc.ResolveRole(identity.Committer, identity.Branch)
	if policy.Permits(action, result.IsTag, result.Role) {
		result.Decision = model.Allow
		result.Reason = fmt.Sprintf("role %q permits %s on %s", result.Role, action, identity.Branch)
		return result, hash
	}

	result.Reason = denyReason(result)
	return result, hash
}

func denyReason(r model.Result) string {
	switch {
	case r.IsTag:
		return "tag updates are not accepted"
	case r.Role == "":
		return fmt.Sprintf("%s has no role on %s", r.Identity.Committer, r.Identity.Branch)
	default:
		return fmt.Sprintf("role %q does not permit %s on %s (requires %s)",
			r.Role, r.Action, r.Identity.Branch, strings.Join(policy.RequiredRoles(r.Action), " or "))
	}
}

func deny(r model.Result, err error) model.Result {
	r.Decision = model.Deny
	r.Err = err
	r.Reason = err.Error()
	return r
}

// finish logs and audits a decision. An allow that cannot be audited is
// downgraded to deny.
func (g *Gate) finish(r model.Result, policyHash string) model.Result {
	if g.audit != nil {
		if err := g.audit.Record(audit.EntryFromResult(r, policyHash)); err != nil {
			g.log.Error().Err(err).Str("ref", r.Update.Ref).Msg("audit record failed")
			if r.Allowed() {
				r = deny(r, fmt.Errorf("audit: %w", err))
			}
		}
	}

	ev := g.log.Info()
	if !r.Allowed() {
		ev = g.log.Warn()
	}
	if r.Err != nil {
		ev = ev.Err(r.Err)
	}
	ev.Str("ref", r.Update.Ref).
		Str("action", r.Action.String()).
		Bool("tag", r.IsTag).
		Str("committer", r.Identity.Committer).
		Str("commit", model.ObjectID(r.Identity.Commit.ID).Short()).
		Str("branch", r.Identity.Branch).
		Str("role", r.Role).
		Str("decision", string(r.Decision)).
		Msg(r.Reason)
	return r
}
