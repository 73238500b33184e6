package enums

import (
	"fmt"
	"strings"
)

// MemberRole is the operator role carried in access tokens.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleSeller MemberRole = "seller"
)

var validMemberRoles = []MemberRole{
	MemberRoleAdmin,
	MemberRoleSeller,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMemberRole accepts the role claim as issued, ignoring case and
// surrounding blanks.
func ParseMemberRole(value string) (MemberRole, error) {
	role := MemberRole(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid member role %q", value)
	}
	return role, nil
}
