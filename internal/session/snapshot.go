// Package session owns the console's authentication state: the persisted
// bearer token, the restored user profile and the transitions between the
// anonymous, restoring and authenticated states.
package session

import (
	"context"

	"github.com/alecgard/dktadmin/internal/auth"
)

// Navigation targets chosen by the session lifecycle.
const (
	LoginPath      = "/auth/login"
	DashboardPath  = "/dashboard"
	AdminHomePath  = "/dashboard/admin"
	AgentQueuePath = "/dashboard/agent/tickets"
)

// State is the lifecycle phase of a session.
type State int

const (
	Anonymous State = iota
	Restoring
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Snapshot is an immutable view of a session. A token may be present without
// a user only while Loading is true.
type Snapshot struct {
	Token   string
	User    *auth.User
	Loading bool
}

// IsAuthenticated is true once the user profile has resolved.
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

// State derives the lifecycle phase from the snapshot.
func (s Snapshot) State() State {
	switch {
	case s.User != nil:
		return Authenticated
	case s.Loading:
		return Restoring
	default:
		return Anonymous
	}
}

// Role returns the user's role, or "" when anonymous.
func (s Snapshot) Role() auth.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// LandingPath is where a freshly signed-in user of the given role goes.
func LandingPath(role auth.Role) string {
	switch role {
	case auth.RoleAdmin:
		return AdminHomePath
	case auth.RoleAgent:
		return AgentQueuePath
	default:
		return DashboardPath
	}
}

type contextKey int

const controllerContextKey contextKey = iota

// ContextWithController returns a new context carrying c.
func ContextWithController(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, controllerContextKey, c)
}

// ControllerFromContext extracts the session controller, or nil if absent.
func ControllerFromContext(ctx context.Context) *Controller {
	c, _ := ctx.Value(controllerContextKey).(*Controller)
	return c
}

// FromContext returns the snapshot of the controller in ctx, or an anonymous
// snapshot when there is none.
func FromContext(ctx context.Context) Snapshot {
	if c := ControllerFromContext(ctx); c != nil {
		return c.Snapshot()
	}
	return Snapshot{}
}
