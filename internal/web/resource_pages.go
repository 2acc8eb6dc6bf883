package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/dktadmin/internal/account"
	"github.com/alecgard/dktadmin/internal/agency"
	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/form"
	"github.com/alecgard/dktadmin/internal/resource"
)

// resourcePages serves list/new/edit/delete pages for one admin collection.
type resourcePages[E resource.Entity, P any] struct {
	base       string
	title      string
	noun       string
	possessive string
	listTmpl   string
	formTmpl   string

	controller func(s *server, cfg resource.Config) *resource.Controller[E, P]
	parse      func(values url.Values, creating bool) (P, error)
	inputFrom  func(E) P
	name       func(E) string
}

type listView[E any] struct {
	Items []E
	Err   string
}

type formView[P any] struct {
	Editing bool
	Action  string
	Input   P
	Fields  form.Errors
	Roles   []auth.Role
}

type confirmView struct {
	Noun       string
	Name       string
	Possessive string
	Action     string
	Cancel     string
}

func agencyPages() *resourcePages[agency.Agency, agency.Input] {
	return &resourcePages[agency.Agency, agency.Input]{
		base:       "/dashboard/admin/agencies",
		title:      "Agencies",
		noun:       "agency",
		possessive: "its",
		listTmpl:   "agencies",
		formTmpl:   "agency_form",
		controller: func(s *server, cfg resource.Config) *resource.Controller[agency.Agency, agency.Input] {
			return agency.NewController(s.api, cfg)
		},
		parse: func(v url.Values, _ bool) (agency.Input, error) {
			return agency.ParseForm(v)
		},
		inputFrom: agency.InputFrom,
		name:      func(a agency.Agency) string { return a.Name },
	}
}

func userPages() *resourcePages[account.User, account.Input] {
	return &resourcePages[account.User, account.Input]{
		base:       "/dashboard/admin/users",
		title:      "Users",
		noun:       "user",
		possessive: "their",
		listTmpl:   "users",
		formTmpl:   "user_form",
		controller: func(s *server, cfg resource.Config) *resource.Controller[account.User, account.Input] {
			return account.NewController(s.api, cfg)
		},
		parse:     account.ParseForm,
		inputFrom: account.InputFrom,
		name:      func(u account.User) string { return u.Name },
	}
}

func (p *resourcePages[E, P]) mount(r chi.Router, s *server) {
	prefix := p.base[len("/dashboard"):]
	r.Get(prefix, p.index(s))
	r.Get(prefix+"/new", p.newForm(s))
	r.Post(prefix, p.create(s))
	r.Get(prefix+"/{id}/edit", p.editForm(s))
	r.Post(prefix+"/{id}", p.update(s))
	r.Get(prefix+"/{id}/delete", p.confirmDelete(s))
	r.Post(prefix+"/{id}/delete", p.delete(s))
}

func (p *resourcePages[E, P]) index(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := p.controller(s, s.resourceConfig(r))
		_ = c.LoadFor(r.Context(), auth.UserFromContext(r.Context()), auth.RoleAdmin)
		s.render.Page(w, r, http.StatusOK, p.listTmpl, p.title, listView[E]{Items: c.Items(), Err: c.Err()})
	}
}

func (p *resourcePages[E, P]) newForm(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := p.controller(s, s.resourceConfig(r))
		c.OpenCreate()
		p.renderForm(w, r, s, http.StatusOK, c.Form(), nil, 0)
	}
}

func (p *resourcePages[E, P]) create(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.render.Error(w, r, http.StatusBadRequest, "Invalid form submission.")
			return
		}
		c := p.controller(s, s.mutationConfig(r))
		c.OpenCreate()

		in, err := p.parse(r.PostForm, true)
		if err != nil {
			f := c.Form()
			f.Draft = in
			p.renderForm(w, r, s, http.StatusUnprocessableEntity, f, form.FieldErrors(err), 0)
			return
		}
		if err := c.Create(r.Context(), in); err != nil {
			p.renderForm(w, r, s, mutationStatus(err), c.Form(), nil, 0)
			return
		}
		s.redirect(w, r, p.base)
	}
}

func (p *resourcePages[E, P]) editForm(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, e, ok := p.load(w, r, s)
		if !ok {
			return
		}
		c.OpenEdit(e)
		f := c.Form()
		f.Draft = p.inputFrom(e)
		p.renderForm(w, r, s, http.StatusOK, f, nil, e.Key())
	}
}

func (p *resourcePages[E, P]) update(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			s.render.Error(w, r, http.StatusNotFound, "Unknown "+p.noun+".")
			return
		}
		if err := r.ParseForm(); err != nil {
			s.render.Error(w, r, http.StatusBadRequest, "Invalid form submission.")
			return
		}
		c := p.controller(s, s.mutationConfig(r))

		in, err := p.parse(r.PostForm, false)
		if err != nil {
			f := resource.Form[E, P]{Mode: resource.FormEdit, Draft: in}
			p.renderForm(w, r, s, http.StatusUnprocessableEntity, f, form.FieldErrors(err), id)
			return
		}
		if err := c.Update(r.Context(), id, in); err != nil {
			p.renderForm(w, r, s, mutationStatus(err), c.Form(), nil, id)
			return
		}
		s.redirect(w, r, p.base)
	}
}

func (p *resourcePages[E, P]) confirmDelete(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, e, ok := p.load(w, r, s)
		if !ok {
			return
		}
		s.render.Page(w, r, http.StatusOK, "confirm_delete", "Delete "+p.noun, confirmView{
			Noun:       p.noun,
			Name:       p.name(e),
			Possessive: p.possessive,
			Action:     fmt.Sprintf("%s/%d/delete", p.base, e.Key()),
			Cancel:     p.base,
		})
	}
}

func (p *resourcePages[E, P]) delete(s *server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			s.render.Error(w, r, http.StatusNotFound, "Unknown "+p.noun+".")
			return
		}
		c := p.controller(s, s.mutationConfig(r))
		confirmed := r.PostFormValue("confirm") == "yes"
		if err := c.Delete(r.Context(), id, confirmed); errors.Is(err, resource.ErrNotConfirmed) {
			s.redirect(w, r, fmt.Sprintf("%s/%d/delete", p.base, id))
			return
		}
		s.redirect(w, r, p.base)
	}
}

// load lists the collection and finds the entity named in the URL, writing
// an error page when it cannot.
func (p *resourcePages[E, P]) load(w http.ResponseWriter, r *http.Request, s *server) (*resource.Controller[E, P], E, bool) {
	var zero E
	id, ok := parseID(r)
	if !ok {
		s.render.Error(w, r, http.StatusNotFound, "Unknown "+p.noun+".")
		return nil, zero, false
	}
	c := p.controller(s, s.resourceConfig(r))
	if err := c.LoadFor(r.Context(), auth.UserFromContext(r.Context()), auth.RoleAdmin); err != nil {
		s.render.Error(w, r, http.StatusBadGateway, c.Err())
		return nil, zero, false
	}
	e, found := c.Find(id)
	if !found {
		s.render.Error(w, r, http.StatusNotFound, fmt.Sprintf("No %s with id %d.", p.noun, id))
		return nil, zero, false
	}
	return c, e, true
}

func (p *resourcePages[E, P]) renderForm(w http.ResponseWriter, r *http.Request, s *server, status int, f resource.Form[E, P], fields form.Errors, id int64) {
	editing := f.Mode == resource.FormEdit
	action := p.base
	if editing {
		action = fmt.Sprintf("%s/%d", p.base, id)
	}
	title := "New " + p.noun
	if editing {
		title = "Edit " + p.noun
	}
	s.render.Page(w, r, status, p.formTmpl, title, formView[P]{
		Editing: editing,
		Action:  action,
		Input:   f.Draft,
		Fields:  fields,
		Roles:   auth.Roles,
	})
}

// mutationStatus maps a failed backend change to the status of the
// re-rendered form.
func mutationStatus(err error) int {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindStatus {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
