// Package guard decides whether a page may be shown for a session.
package guard

import (
	"net/http"

	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/session"
)

// Outcome is what the guard tells the caller to do.
type Outcome int

const (
	Render Outcome = iota
	Loading
	Redirect
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision is the result of Decide. Location is set for Redirect.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide applies the access rules. An empty allow-list admits every
// authenticated role.
func Decide(s session.Snapshot, allowed []auth.Role) Decision {
	switch {
	case s.Loading:
		return Decision{Outcome: Loading}
	case !s.IsAuthenticated():
		return Decision{Outcome: Redirect, Location: session.LoginPath}
	case len(allowed) > 0 && !s.User.Role.In(allowed...):
		return Decision{Outcome: Forbidden}
	}
	return Decision{Outcome: Render}
}

// Renderer draws the non-content outcomes.
type Renderer interface {
	RenderLoading(w http.ResponseWriter, r *http.Request)
	RenderForbidden(w http.ResponseWriter, r *http.Request)
}

// Require returns middleware that enforces Decide against the session
// controller stored in the request context.
func Require(rnd Renderer, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			d := Decide(s, roles)
			switch d.Outcome {
			case Loading:
				rnd.RenderLoading(w, r)
			case Redirect:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			case Forbidden:
				rnd.RenderForbidden(w, r)
			default:
				ctx := auth.ContextWithUser(r.Context(), s.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}
