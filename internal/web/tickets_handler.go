package web

import (
	"net/http"

	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/session"
	"github.com/alecgard/dktadmin/internal/ticket"
)

func (s *server) ticketQueue(w http.ResponseWriter, r *http.Request) {
	q := ticket.NewQueue(s.api, s.resourceConfig(r))
	_ = q.LoadFor(r.Context(), auth.UserFromContext(r.Context()), auth.RoleAgent)
	s.render.Page(w, r, http.StatusOK, "tickets", "Tickets", listView[ticket.Ticket]{Items: q.Items(), Err: q.Err()})
}

func (s *server) ticketStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		s.render.Error(w, r, http.StatusNotFound, "Unknown ticket.")
		return
	}
	to, err := ticket.ParseStatus(r.PostFormValue("status"))
	if err != nil {
		notifierFor(r).Notify(notify.Error("Error", "Failed to update ticket status."))
		s.redirect(w, r, session.AgentQueuePath)
		return
	}
	q := ticket.NewQueue(s.api, s.mutationConfig(r))
	_ = q.Transition(r.Context(), id, to)
	s.redirect(w, r, session.AgentQueuePath)
}
