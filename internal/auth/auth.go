package auth

import (
	"fmt"
	"strings"
)

// Role is the backend-assigned role of a user. The backend is authoritative;
// the console only reads it to filter navigation and gate pages.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAgent  Role = "agent"
	RoleClient Role = "client"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleAgent, RoleClient}

// ParseRole validates s against the closed set of roles.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleAgent, RoleClient:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Label returns the role in upper case, as shown in badges.
func (r Role) Label() string {
	return strings.ToUpper(string(r))
}

// Badge is the visual variant used for the role badge.
func (r Role) Badge() string {
	switch r {
	case RoleAdmin:
		return "destructive"
	case RoleAgent:
		return "secondary"
	}
	return "default"
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, o := range roles {
		if o == r {
			return true
		}
	}
	return false
}

// User is the profile of the signed-in user as returned by GET /user.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Initial returns the upper-cased first letter of the user's name, used as
// the avatar fallback.
func (u *User) Initial() string {
	if u == nil || u.Name == "" {
		return ""
	}
	return strings.ToUpper(string([]rune(u.Name)[:1]))
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsAgent returns true if the user has the agent role.
func (u *User) IsAgent() bool {
	return u != nil && u.Role == RoleAgent
}
