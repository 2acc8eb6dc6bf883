package web

import (
	"strings"

	"github.com/alecgard/dktadmin/internal/auth"
)

// NavItem is one sidebar link.
type NavItem struct {
	Href   string
	Label  string
	Active bool
}

var navItems = []struct {
	href  string
	label string
	roles []auth.Role
}{
	{"/dashboard", "Dashboard", nil},
	{"/dashboard/admin/agencies", "Agencies", []auth.Role{auth.RoleAdmin}},
	{"/dashboard/admin/users", "Users", []auth.Role{auth.RoleAdmin}},
	{"/dashboard/agent/tickets", "Tickets", []auth.Role{auth.RoleAgent}},
}

// Navigation returns the sidebar links visible to role, marking the one that
// matches current.
func Navigation(role auth.Role, current string) []NavItem {
	var out []NavItem
	for _, it := range navItems {
		if len(it.roles) > 0 && !role.In(it.roles...) {
			continue
		}
		active := current == it.href
		if !active && it.href != "/dashboard" {
			active = strings.HasPrefix(current, it.href+"/")
		}
		out = append(out, NavItem{Href: it.href, Label: it.label, Active: active})
	}
	return out
}
