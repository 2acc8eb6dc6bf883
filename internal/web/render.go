package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/session"
)

const layoutFile = "templates/layout.html"

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "–"
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"title": func(v any) string {
		s := fmt.Sprint(v)
		if s == "" {
			return s
		}
		r := []rune(s)
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	},
}

// pageData is what every template receives.
type pageData struct {
	Title string
	User  *auth.User
	Nav   []NavItem
	Flash []notify.Notification
	Data  any
}

// Renderer executes page templates inside the shared layout.
type Renderer struct {
	files  fs.FS
	reload bool
	logger *slog.Logger

	mu    sync.Mutex
	pages map[string]*template.Template
}

// NewRenderer parses every page under templates/ in files. With reload set
// the templates are parsed again on each render.
func NewRenderer(files fs.FS, reload bool, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rn := &Renderer{files: files, reload: reload, logger: logger}
	pages, err := rn.parse()
	if err != nil {
		return nil, err
	}
	rn.pages = pages
	return rn, nil
}

func (rn *Renderer) parse() (map[string]*template.Template, error) {
	names, err := fs.Glob(rn.files, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(names))
	for _, file := range names {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		t, err := template.New(name).Funcs(funcs).ParseFS(rn.files, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", file, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (rn *Renderer) lookup(name string) (*template.Template, error) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.reload {
		pages, err := rn.parse()
		if err != nil {
			return nil, err
		}
		rn.pages = pages
	}
	t, ok := rn.pages[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return t, nil
}

// Page renders the named page with status. The session user, navigation
// and pending notifications are taken from the request.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	t, err := rn.lookup(name)
	if err != nil {
		rn.logger.Error("template lookup failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pd := pageData{Title: title, Data: data}
	if u := session.FromContext(r.Context()).User; u != nil {
		pd.User = u
		pd.Nav = Navigation(u.Role, r.URL.Path)
	}
	if f := flashFromContext(r.Context()); f != nil {
		pd.Flash = f.take()
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		rn.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderLoading shows the neutral placeholder while a session resolves.
func (rn *Renderer) RenderLoading(w http.ResponseWriter, r *http.Request) {
	rn.Page(w, r, http.StatusOK, "loading", "Loading", nil)
}

// RenderForbidden shows the permission denied page.
func (rn *Renderer) RenderForbidden(w http.ResponseWriter, r *http.Request) {
	rn.Page(w, r, http.StatusForbidden, "forbidden", "Forbidden", nil)
}

// Error shows a generic error page.
func (rn *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	rn.Page(w, r, status, "error", http.StatusText(status), message)
}
