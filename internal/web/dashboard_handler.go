package web

import (
	"net/http"

	"github.com/alecgard/dktadmin/internal/account"
	"github.com/alecgard/dktadmin/internal/agency"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/session"
)

type adminView struct {
	Agencies   int
	AgenciesOK bool
	Users      int
	UsersOK    bool
}

// dashboard sends admins and agents to their landing pages; other roles see
// the generic dashboard.
func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u.IsAdmin() || u.IsAgent() {
		s.redirect(w, r, session.LandingPath(u.Role))
		return
	}
	s.render.Page(w, r, http.StatusOK, "dashboard", "Dashboard", nil)
}

func (s *server) adminHome(w http.ResponseWriter, r *http.Request) {
	cfg := s.resourceConfig(r)
	ag := agency.NewController(s.api, cfg)
	us := account.NewController(s.api, cfg)

	var v adminView
	if err := ag.List(r.Context()); err == nil {
		v.Agencies, v.AgenciesOK = len(ag.Items()), true
	}
	if err := us.List(r.Context()); err == nil {
		v.Users, v.UsersOK = len(us.Items()), true
	}
	s.render.Page(w, r, http.StatusOK, "admin", "Admin Dashboard", v)
}
