// Package resource implements list/create/update/delete against a backend
// collection with the loading, error, form and notification handling shared
// by every management page.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/notify"
)

// PermissionDeniedMessage is shown when the session role may not load a page.
const PermissionDeniedMessage = "You do not have permission to view this page."

var (
	ErrNotConfirmed     = errors.New("resource: delete not confirmed")
	ErrBusy             = errors.New("resource: another change is in progress")
	ErrPermissionDenied = errors.New("resource: permission denied")
)

// Entity is a backend record addressable by id.
type Entity interface {
	Key() int64
}

// Doer issues backend requests. *apiclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, opts apiclient.Options, out any) (bool, error)
}

// Labels name the resource in user-facing messages, e.g. {"Agency",
// "agencies"}.
type Labels struct {
	Noun   string
	Plural string
}

// Phase is the lifecycle of the cached collection.
type Phase int

const (
	Idle Phase = iota
	Loading
	Loaded
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// FormMode tells whether the form is closed, creating or editing.
type FormMode int

const (
	FormClosed FormMode = iota
	FormCreate
	FormEdit
)

// Form is the open/closed state of the create/edit form. Draft holds the
// last submitted payload so a failed submission can be shown again.
type Form[E Entity, P any] struct {
	Mode    FormMode
	Editing E
	Draft   P
}

// Open reports whether the form is showing.
func (f Form[E, P]) Open() bool { return f.Mode != FormClosed }

// Config wires a Controller to one collection.
type Config struct {
	Path     string
	Labels   Labels
	Token    string
	Notifier notify.Notifier
	Logger   *slog.Logger
	// NoReload skips the reload after a successful change. Set it when the
	// caller redirects to a page that lists anyway.
	NoReload bool
}

// Controller caches one collection for the lifetime of a page. It is not
// safe for concurrent use.
type Controller[E Entity, P any] struct {
	api      Doer
	path     string
	labels   Labels
	token    string
	notifier notify.Notifier
	logger   *slog.Logger
	noReload bool

	items      []E
	phase      Phase
	errMsg     string
	submitting bool
	form       Form[E, P]
}

// New creates a controller for the collection at cfg.Path.
func New[E Entity, P any](api Doer, cfg Config) *Controller[E, P] {
	c := &Controller[E, P]{
		api:      api,
		path:     strings.TrimSuffix(cfg.Path, "/"),
		labels:   cfg.Labels,
		token:    cfg.Token,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		noReload: cfg.NoReload,
	}
	if c.notifier == nil {
		c.notifier = notify.Discard{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Items returns the cached collection in backend order.
func (c *Controller[E, P]) Items() []E { return c.items }

// Phase returns the collection lifecycle phase.
func (c *Controller[E, P]) Phase() Phase { return c.phase }

// Err returns the message of the last failed load, or "".
func (c *Controller[E, P]) Err() string { return c.errMsg }

// Submitting reports whether a mutation is in flight.
func (c *Controller[E, P]) Submitting() bool { return c.submitting }

// Form returns the form state.
func (c *Controller[E, P]) Form() Form[E, P] { return c.form }

// Labels returns the resource labels.
func (c *Controller[E, P]) Labels() Labels { return c.labels }

// Find returns the cached entity with the given id.
func (c *Controller[E, P]) Find(id int64) (E, bool) {
	for _, it := range c.items {
		if it.Key() == id {
			return it, true
		}
	}
	var zero E
	return zero, false
}

// LoadFor lists the collection if user holds the required role. Otherwise it
// records the permission error without contacting the backend.
func (c *Controller[E, P]) LoadFor(ctx context.Context, user *auth.User, required auth.Role) error {
	if user == nil || user.Role != required {
		c.phase = Errored
		c.errMsg = PermissionDeniedMessage
		return ErrPermissionDenied
	}
	return c.List(ctx)
}

// List replaces the cache with the backend's collection.
func (c *Controller[E, P]) List(ctx context.Context) error {
	c.phase = Loading
	c.errMsg = ""

	var items []E
	if _, err := c.api.Do(ctx, http.MethodGet, c.path, c.opts(nil), &items); err != nil {
		msg := apiclient.Message(err, fmt.Sprintf("Failed to fetch %s.", c.labels.Plural))
		c.phase = Errored
		c.errMsg = msg
		c.notifier.Notify(notify.Error("Error", msg))
		return err
	}
	if items == nil {
		items = []E{}
	}
	c.items = items
	c.phase = Loaded
	return nil
}

// OpenCreate opens an empty form.
func (c *Controller[E, P]) OpenCreate() {
	var zeroE E
	var zeroP P
	c.form = Form[E, P]{Mode: FormCreate, Editing: zeroE, Draft: zeroP}
}

// OpenEdit opens the form for e.
func (c *Controller[E, P]) OpenEdit(e E) {
	var zeroP P
	c.form = Form[E, P]{Mode: FormEdit, Editing: e, Draft: zeroP}
}

// CloseForm closes the form and drops any draft.
func (c *Controller[E, P]) CloseForm() {
	c.form = Form[E, P]{}
}

// Create posts p to the collection. On success the form closes and the
// collection is reloaded once, unless NoReload is set; on failure the form
// stays open with p.
func (c *Controller[E, P]) Create(ctx context.Context, p P) error {
	return c.mutate(ctx, http.MethodPost, c.path, p, "added", "add")
}

// Update replaces the entity with the given id.
func (c *Controller[E, P]) Update(ctx context.Context, id int64, p P) error {
	return c.mutate(ctx, http.MethodPut, c.itemPath(id), p, "updated", "update")
}

// Delete removes the entity with the given id once confirmed. The cache is
// only refreshed from the backend, never edited in place.
func (c *Controller[E, P]) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if c.submitting {
		return ErrBusy
	}
	c.submitting = true
	defer func() { c.submitting = false }()

	if _, err := c.api.Do(ctx, http.MethodDelete, c.itemPath(id), c.opts(nil), nil); err != nil {
		c.failed(err, "delete", id)
		return err
	}
	c.logger.Info("resource deleted", "resource", c.labels.Plural, "id", id)
	c.notifier.Notify(notify.Info("Success", fmt.Sprintf("%s deleted successfully.", c.labels.Noun)))
	c.Reload(ctx)
	return nil
}

func (c *Controller[E, P]) mutate(ctx context.Context, method, path string, p P, done, verb string) error {
	if c.submitting {
		return ErrBusy
	}
	c.submitting = true
	defer func() { c.submitting = false }()

	if _, err := c.api.Do(ctx, method, path, c.opts(p), nil); err != nil {
		if c.form.Mode == FormClosed {
			c.form.Mode = FormCreate
			if method == http.MethodPut {
				c.form.Mode = FormEdit
			}
		}
		c.form.Draft = p
		c.failed(err, verb, 0)
		return err
	}

	c.logger.Info("resource "+done, "resource", c.labels.Plural, "method", method, "path", path)
	c.notifier.Notify(notify.Info("Success", fmt.Sprintf("%s %s successfully.", c.labels.Noun, done)))
	c.CloseForm()
	c.Reload(ctx)
	return nil
}

func (c *Controller[E, P]) failed(err error, verb string, id int64) {
	msg := apiclient.Message(err, fmt.Sprintf("Failed to %s %s.", verb, strings.ToLower(c.labels.Noun)))
	attrs := []any{"resource", c.labels.Plural, "action", verb, "error", err}
	if id != 0 {
		attrs = append(attrs, "id", id)
	}
	c.logger.Warn("resource change failed", attrs...)
	c.notifier.Notify(notify.Error("Error", msg))
}

func (c *Controller[E, P]) itemPath(id int64) string {
	return fmt.Sprintf("%s/%d", c.path, id)
}

func (c *Controller[E, P]) opts(body any) apiclient.Options {
	return apiclient.Options{Token: c.token, Body: body}
}

// Reload refreshes the collection after a change unless the controller was
// built with NoReload.
func (c *Controller[E, P]) Reload(ctx context.Context) {
	if c.noReload {
		return
	}
	_ = c.List(ctx)
}
