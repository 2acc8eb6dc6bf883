// Package ticket is the agent-facing queue of reservation tickets.
package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/resource"
)

const Path = "/tickets"

var Labels = resource.Labels{Noun: "Ticket", Plural: "tickets"}

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCalled    Status = "called"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusCalled, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown ticket status %q", s)
}

// Terminal reports whether no further action is offered.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Label is the upper-case badge text.
func (s Status) Label() string { return strings.ToUpper(string(s)) }

// Badge is the visual variant used for the status badge.
func (s Status) Badge() string {
	switch s {
	case StatusCalled:
		return "secondary"
	case StatusCancelled:
		return "destructive"
	default:
		return "default"
	}
}

// Action is an operator step that moves a ticket to a new status.
type Action struct {
	Name   string
	Target Status
}

var (
	ActionCall     = Action{Name: "Call", Target: StatusCalled}
	ActionComplete = Action{Name: "Complete", Target: StatusCompleted}
	ActionCancel   = Action{Name: "Cancel", Target: StatusCancelled}
)

// Actions lists the steps offered for a ticket in status s. The backend
// remains the authority on which transitions are legal.
func (s Status) Actions() []Action {
	switch s {
	case StatusPending:
		return []Action{ActionCall}
	case StatusCalled:
		return []Action{ActionComplete, ActionCancel}
	}
	return nil
}

// Party is the embedded summary of a related user or agency.
type Party struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Ticket is a queued reservation.
type Ticket struct {
	ID              int64     `json:"id"`
	TicketNumber    string    `json:"ticket_number"`
	TypeReservation string    `json:"type_reservation"`
	Status          Status    `json:"status"`
	UserID          int64     `json:"user_id"`
	AgencyID        int64     `json:"agency_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	User            *Party    `json:"user,omitempty"`
	Agency          *Party    `json:"agency,omitempty"`
}

func (t Ticket) Key() int64 { return t.ID }

// ClientName returns the client's name or "N/A".
func (t Ticket) ClientName() string {
	if t.User == nil || t.User.Name == "" {
		return "N/A"
	}
	return t.User.Name
}

// ClientEmail returns the client's email or "N/A".
func (t Ticket) ClientEmail() string {
	if t.User == nil || t.User.Email == "" {
		return "N/A"
	}
	return t.User.Email
}

// AgencyName returns the agency's name or "N/A".
func (t Ticket) AgencyName() string {
	if t.Agency == nil || t.Agency.Name == "" {
		return "N/A"
	}
	return t.Agency.Name
}

// StatusUpdate is the payload of a status transition.
type StatusUpdate struct {
	Status Status `json:"status"`
}

// Queue lists tickets and applies status transitions.
type Queue struct {
	*resource.Controller[Ticket, StatusUpdate]

	api      resource.Doer
	token    string
	notifier notify.Notifier
	logger   *slog.Logger
	updating bool
}

// NewQueue creates a queue bound to the session token in cfg.
func NewQueue(api resource.Doer, cfg resource.Config) *Queue {
	cfg.Path = Path
	cfg.Labels = Labels
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Queue{
		Controller: resource.New[Ticket, StatusUpdate](api, cfg),
		api:        api,
		token:      cfg.Token,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
	}
}

// Updating reports whether a transition is in flight.
func (q *Queue) Updating() bool { return q.updating }

// Transition sets the status of ticket id and refreshes the queue.
func (q *Queue) Transition(ctx context.Context, id int64, to Status) error {
	if q.updating {
		return resource.ErrBusy
	}
	q.updating = true
	defer func() { q.updating = false }()

	path := fmt.Sprintf("%s/%d", Path, id)
	opts := apiclient.Options{Token: q.token, Body: StatusUpdate{Status: to}}
	if _, err := q.api.Do(ctx, http.MethodPut, path, opts, nil); err != nil {
		q.logger.Warn("ticket transition failed", "id", id, "status", string(to), "error", err)
		q.notifier.Notify(notify.Error("Error", apiclient.Message(err, "Failed to update ticket status.")))
		return err
	}
	q.logger.Info("ticket transitioned", "id", id, "status", string(to))
	q.notifier.Notify(notify.Info("Success", fmt.Sprintf("Ticket %d status updated to %s.", id, to)))
	q.Reload(ctx)
	return nil
}
