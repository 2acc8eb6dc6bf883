// Package web serves the browser console: sign-in, the role dashboards and
// the management pages, all backed by the external API.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/guard"
	"github.com/alecgard/dktadmin/internal/metrics"
	"github.com/alecgard/dktadmin/internal/ratelimit"
	"github.com/alecgard/dktadmin/internal/resource"
	"github.com/alecgard/dktadmin/internal/session"
	"github.com/alecgard/dktadmin/internal/ui"
)

// RouterDeps holds all dependencies for the console router.
type RouterDeps struct {
	API        *apiclient.Client
	Renderer   *Renderer
	Cookie     session.CookieConfig
	SessionTTL time.Duration
	Cache      session.ProfileCache
	Metrics    *metrics.Metrics
	Limiter    *ratelimit.Limiter
	Logger     *slog.Logger
}

type server struct {
	api     *apiclient.Client
	render  *Renderer
	cookie  session.CookieConfig
	ttl     time.Duration
	cache   session.ProfileCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	s := &server{
		api:     deps.API,
		render:  deps.Renderer,
		cookie:  deps.Cookie,
		ttl:     deps.SessionTTL,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(requestLogger(s.logger, s.metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Exposition())
		r.Get("/metrics/summary", s.metrics.Handler())
	}
	r.Handle("/static/*", ui.StaticHandler())

	agencies := agencyPages()
	users := userPages()

	r.Group(func(pr chi.Router) {
		pr.Use(s.withSession)

		pr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
		})

		pr.Route("/auth", func(ar chi.Router) {
			ar.Group(func(lr chi.Router) {
				if deps.Limiter != nil {
					lr.Use(ratelimit.Middleware(deps.Limiter, http.HandlerFunc(s.loginThrottled), s.onLoginThrottled))
				}
				lr.Get("/login", s.loginPage)
				lr.Post("/login", s.loginSubmit)
			})
			ar.Get("/forgot-password", s.forgotPage)
			ar.Post("/forgot-password", s.forgotSubmit)
			ar.Post("/logout", s.logout)
		})

		pr.Route("/dashboard", func(dr chi.Router) {
			dr.Use(guard.Require(s.render))
			dr.Get("/", s.dashboard)

			dr.Group(func(adm chi.Router) {
				adm.Use(guard.Require(s.render, auth.RoleAdmin))
				adm.Get("/admin", s.adminHome)
				agencies.mount(adm, s)
				users.mount(adm, s)
			})

			dr.Group(func(ag chi.Router) {
				ag.Use(guard.Require(s.render, auth.RoleAgent))
				ag.Get("/agent/tickets", s.ticketQueue)
				ag.Post("/agent/tickets/{id}/status", s.ticketStatus)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.render.Error(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
	})

	return r
}

// withSession restores the session from the auth cookie and installs the
// controller and flash notifier in the request context.
func (s *server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := newFlash(w, r, s.cookie.Secure)

		var rec session.Recorder
		if s.metrics != nil {
			rec = s.metrics
		}
		ctrl := session.NewController(s.api, session.NewCookieStore(w, r, s.cookie), session.Options{
			TTL:      s.ttl,
			Cache:    s.cache,
			Notifier: fl,
			Logger:   s.logger,
			Recorder: rec,
		})
		ctrl.Restore(r.Context())

		ctx := session.ContextWithController(r.Context(), ctrl)
		ctx = contextWithFlash(ctx, fl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// redirect carries pending notifications and sends a 303.
func (s *server) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if f := flashFromContext(r.Context()); f != nil {
		f.carry()
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// resourceConfig binds a resource controller to the request's session.
func (s *server) resourceConfig(r *http.Request) resource.Config {
	return resource.Config{
		Token:    session.FromContext(r.Context()).Token,
		Notifier: notifierFor(r),
		Logger:   s.logger.With("request_id", RequestIDFromContext(r.Context())),
	}
}

// mutationConfig is resourceConfig for handlers that redirect to a list page
// after the change, which reloads the collection itself.
func (s *server) mutationConfig(r *http.Request) resource.Config {
	cfg := s.resourceConfig(r)
	cfg.NoReload = true
	return cfg
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
