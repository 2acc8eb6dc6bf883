package web

import (
	"errors"
	"net/http"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/form"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/session"
)

const (
	forgotFallback      = "If an account with that email exists, a password reset link has been sent."
	forgotToastFallback = "Please check your inbox for instructions."
	forgotErrorPage     = "Failed to send password reset email. Please try again."
	forgotErrorToast    = "Failed to send password reset email."
	throttledMessage    = "Too many login attempts. Please try again later."
)

type loginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type loginView struct {
	Email  string
	Error  string
	Fields form.Errors
}

type forgotInput struct {
	Email string `form:"email" validate:"required,email"`
}

type forgotView struct {
	Email   string
	Message string
	Fields  form.Errors
}

func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	if snap := session.FromContext(r.Context()); snap.IsAuthenticated() {
		s.redirect(w, r, session.LandingPath(snap.User.Role))
		return
	}
	s.render.Page(w, r, http.StatusOK, "login", "Login", loginView{})
}

func (s *server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render.Page(w, r, http.StatusBadRequest, "login", "Login", loginView{Error: "Invalid form submission."})
		return
	}
	in := loginInput{Email: form.Trimmed(r.PostForm, "email"), Password: r.PostForm.Get("password")}
	if err := form.Validate(in); err != nil {
		s.render.Page(w, r, http.StatusUnprocessableEntity, "login", "Login", loginView{Email: in.Email, Fields: form.FieldErrors(err)})
		return
	}

	ctrl := session.ControllerFromContext(r.Context())
	landing, err := ctrl.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		status := http.StatusUnauthorized
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Kind != apiclient.KindStatus {
			status = http.StatusBadGateway
		}
		s.render.Page(w, r, status, "login", "Login", loginView{Email: in.Email})
		return
	}
	s.redirect(w, r, landing)
}

func (s *server) loginThrottled(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.render.Page(w, r, http.StatusTooManyRequests, "login", "Login", loginView{
		Email: form.Trimmed(r.PostForm, "email"),
		Error: throttledMessage,
	})
}

func (s *server) onLoginThrottled() {
	s.logger.Warn("login attempt rate limited")
	if s.metrics != nil {
		s.metrics.IncRateLimitRejection("login")
	}
}

func (s *server) forgotPage(w http.ResponseWriter, r *http.Request) {
	s.render.Page(w, r, http.StatusOK, "forgot_password", "Forgot Password", forgotView{})
}

func (s *server) forgotSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render.Page(w, r, http.StatusBadRequest, "forgot_password", "Forgot Password", forgotView{})
		return
	}
	in := forgotInput{Email: form.Trimmed(r.PostForm, "email")}
	if err := form.Validate(in); err != nil {
		s.render.Page(w, r, http.StatusUnprocessableEntity, "forgot_password", "Forgot Password", forgotView{Email: in.Email, Fields: form.FieldErrors(err)})
		return
	}

	n := notifierFor(r)
	msg, err := s.api.ForgotPassword(r.Context(), in.Email)
	if err != nil {
		s.logger.Warn("password reset request failed", "error", err)
		n.Notify(notify.Error("Error", apiclient.Message(err, forgotErrorToast)))
		s.render.Page(w, r, http.StatusOK, "forgot_password", "Forgot Password", forgotView{
			Email:   in.Email,
			Message: apiclient.Message(err, forgotErrorPage),
		})
		return
	}

	toast := msg
	if toast == "" {
		toast = forgotToastFallback
	}
	n.Notify(notify.Info("Password Reset Email Sent", toast))
	if msg == "" {
		msg = forgotFallback
	}
	s.render.Page(w, r, http.StatusOK, "forgot_password", "Forgot Password", forgotView{Message: msg})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	ctrl := session.ControllerFromContext(r.Context())
	s.redirect(w, r, ctrl.Logout(r.Context()))
}
