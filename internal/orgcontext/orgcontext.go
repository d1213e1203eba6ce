package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleMaster = "master"
	RoleAdmin  = "admin"
	RoleSales  = "sales"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

type memberContextKey struct{}

// Member is the authenticated user acting inside the active organization.
type Member struct {
	UserID snowflake.ID
	Role   string
}

// Restricted reports whether the member only sees entities assigned to them.
func (m Member) Restricted() bool {
	return m.Role != RoleMaster && m.Role != RoleAdmin
}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(OrgContextKey{}).(type) {
	case int64:
		return snowflake.ID(typed), typed != 0
	case snowflake.ID:
		return typed, typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}

func WithMember(ctx context.Context, member Member) context.Context {
	member.Role = strings.ToLower(strings.TrimSpace(member.Role))
	return context.WithValue(ctx, memberContextKey{}, member)
}

func MemberFromContext(ctx context.Context) (Member, bool) {
	if ctx == nil {
		return Member{}, false
	}
	member, ok := ctx.Value(memberContextKey{}).(Member)
	if !ok || member.UserID == 0 {
		return Member{}, false
	}
	return member, true
}

// ValidRole reports whether role is one of the organization roles.
func ValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleMaster, RoleAdmin, RoleSales:
		return true
	default:
		return false
	}
}
