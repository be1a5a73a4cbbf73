package policy

import (
	"strings"

	"github.com/ppiankov/gitgate/internal/model"
)

// Roles recognized by Permits. Any other string grants nothing.
const (
	RoleCreate = "create"
	RoleDelete = "delete"
	RoleWrite  = "write"
	RoleAdmin  = "admin"
)

// KnownRole reports whether role (any case) is one Permits can accept.
func KnownRole(role string) bool {
	switch strings.ToLower(role) {
	case RoleCreate, RoleDelete, RoleWrite, RoleAdmin:
		return true
	default:
		return false
	}
}

// ResolveRole returns the role of user on branch, or "" for no access.
//
// Only the first entry named user is consulted. Within it an exact branch
// match wins regardless of position; otherwise the first wildcard rule in
// list order whose prefix matches. User and branch comparisons are
// case-sensitive.
func (d *Document) ResolveRole(user, branch string) string {
	if d == nil {
		return ""
	}

	var access *UserAccess
	for i := range d.UsersInfo {
		if d.UsersInfo[i].UserName == user {
			access = &d.UsersInfo[i]
			break
		}
	}
	if access == nil {
		return ""
	}

	for _, rule := range access.AccessList {
		if rule.Branch == branch {
			return rule.Role
		}
	}

	for _, rule := range access.AccessList {
		prefix, ok := strings.CutSuffix(rule.Branch, "*")
		if !ok {
			continue
		}
		if strings.HasPrefix(branch, prefix) {
			return rule.Role
		}
	}

	return ""
}

// RequiredRoles lists the roles that permit an action.
func RequiredRoles(action model.ActionKind) []string {
	switch action {
	case model.CreateBranch:
		return []string{RoleCreate, RoleAdmin}
	case model.DeleteBranch:
		return []string{RoleDelete, RoleAdmin}
	case model.PushCommits:
		return []string{RoleWrite, RoleAdmin}
	default:
		return nil
	}
}

// Permits decides whether role allows action. Tags never pass through
// this gate.
func Permits(action model.ActionKind, isTag bool, role string) bool {
	if isTag {
		return false
	}
	role = strings.ToLower(role)
	for _, r := range RequiredRoles(action) {
		if role == r {
			return true
		}
	}
	return false
}
