package web

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/metrics"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/ratelimit"
	"github.com/alecgard/dktadmin/internal/session"
	"github.com/alecgard/dktadmin/internal/ui"
)

// ---------------------------------------------------------------------------
// Fake backend
// ---------------------------------------------------------------------------

type backendCall struct {
	Method string
	Path   string
	Body   string
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []backendCall

	agencyStatus int
}

var backendUsers = map[string]string{
	"tok-admin":  `{"id":1,"name":"Ada","email":"ada@example.com","role":"admin"}`,
	"tok-agent":  `{"id":2,"name":"Bob","email":"bob@example.com","role":"agent"}`,
	"tok-client": `{"id":3,"name":"Cy","email":"cy@example.com","role":"client"}`,
}

func (f *fakeBackend) record(r *http.Request) string {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, backendCall{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()
	return string(body)
}

// find returns the recorded calls matching method and path.
func (f *fakeBackend) find(method, path string) []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backendCall
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	w.Header().Set("Content-Type", "application/json")
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		var in struct{ Email, Password string }
		_ = json.Unmarshal([]byte(body), &in)
		if in.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		tok := "tok-" + strings.SplitN(in.Email, "@", 2)[0]
		u, ok := backendUsers[tok]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"`+tok+`","user":`+u+`}`)
	case r.Method == http.MethodGet && r.URL.Path == "/user":
		u, ok := backendUsers[token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Unauthenticated."}`)
			return
		}
		_, _ = io.WriteString(w, u)
	case r.URL.Path == "/auth/logout":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/auth/forgot-password":
		_, _ = io.WriteString(w, `{"message":"Reset link sent."}`)
	case r.Method == http.MethodGet && r.URL.Path == "/agencies":
		_, _ = io.WriteString(w, `[{"id":1,"name":"Central Office","address":"1 Main St","phone":"555","email":"central@example.com"}]`)
	case r.Method == http.MethodGet && r.URL.Path == "/users":
		_, _ = io.WriteString(w, `[{"id":3,"name":"Cy","email":"cy@example.com","role":"client"}]`)
	case r.Method == http.MethodGet && r.URL.Path == "/tickets":
		_, _ = io.WriteString(w, `[{"id":5,"ticket_number":"T-005","type_reservation":"visa","status":"pending"}]`)
	case strings.HasPrefix(r.URL.Path, "/agencies") && f.agencyStatus != 0:
		w.WriteHeader(f.agencyStatus)
		_, _ = io.WriteString(w, `{"message":"The name has already been taken."}`)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		_, _ = io.WriteString(w, `{}`)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type console struct {
	handler http.Handler
	backend *fakeBackend
	metrics *metrics.Metrics
}

func newConsole(t *testing.T, limiter *ratelimit.Limiter) *console {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	rnd, err := NewRenderer(ui.Files(), false, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	m := metrics.New()
	h := NewRouter(RouterDeps{
		API:        api,
		Renderer:   rnd,
		Cookie:     session.CookieConfig{Name: "authToken"},
		SessionTTL: session.DefaultTTL,
		Metrics:    m,
		Limiter:    limiter,
	})
	return &console{handler: h, backend: fb, metrics: m}
}

func (c *console) do(t *testing.T, method, path, token string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "authToken", Value: token})
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range (&http.Response{Header: rec.Header()}).Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func flashNotifications(t *testing.T, rec *httptest.ResponseRecorder) []notify.Notification {
	t.Helper()
	ck := responseCookie(rec, flashCookieName)
	if ck == nil || ck.Value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		t.Fatalf("decoding flash cookie: %v", err)
	}
	var out []notify.Notification
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal flash cookie: %v", err)
	}
	return out
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("expected Location %q, got %q", location, got)
	}
}

// ---------------------------------------------------------------------------
// Routing and guards
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestRoot_RedirectsToLogin(t *testing.T) {
	c := newConsole(t, nil)
	expectRedirect(t, c.do(t, http.MethodGet, "/", "", nil), "/auth/login")
}

func TestUnknownPage_NotFound(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/nowhere", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGuard_Routes(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		path     string
		status   int
		location string
	}{
		{"anonymous dashboard", "", "/dashboard", http.StatusSeeOther, "/auth/login"},
		{"anonymous admin", "", "/dashboard/admin/agencies", http.StatusSeeOther, "/auth/login"},
		{"invalid token", "bogus", "/dashboard/agent/tickets", http.StatusSeeOther, "/auth/login"},
		{"admin landing", "tok-admin", "/dashboard", http.StatusSeeOther, "/dashboard/admin"},
		{"agent landing", "tok-agent", "/dashboard", http.StatusSeeOther, "/dashboard/agent/tickets"},
		{"client dashboard", "tok-client", "/dashboard", http.StatusOK, ""},
		{"agent on admin page", "tok-agent", "/dashboard/admin/users", http.StatusForbidden, ""},
		{"client on tickets", "tok-client", "/dashboard/agent/tickets", http.StatusForbidden, ""},
		{"admin on tickets", "tok-admin", "/dashboard/agent/tickets", http.StatusForbidden, ""},
		{"admin home", "tok-admin", "/dashboard/admin", http.StatusOK, ""},
	}
	c := newConsole(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.do(t, http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.location != "" {
				if got := rec.Header().Get("Location"); got != tt.location {
					t.Errorf("expected Location %q, got %q", tt.location, got)
				}
			}
		})
	}
}

func TestInvalidToken_ClearsCookie(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/dashboard", "bogus", nil)
	expectRedirect(t, rec, "/auth/login")
	ck := responseCookie(rec, "authToken")
	if ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("expected auth cookie to be cleared, got %+v", ck)
	}
}

func TestForbiddenPage_Message(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/dashboard/admin/agencies", "tok-agent", nil)
	if !strings.Contains(rec.Body.String(), "You do not have permission to view this page.") {
		t.Errorf("expected permission message in body, got %s", rec.Body.String())
	}
	if len(c.backend.find(http.MethodGet, "/agencies")) != 0 {
		t.Error("forbidden page must not fetch the collection")
	}
}

// ---------------------------------------------------------------------------
// Sign in and out
// ---------------------------------------------------------------------------

func TestLogin_SuccessSetsCookie(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/auth/login", "", url.Values{"email": {"admin@example.com"}, "password": {"secret"}})
	expectRedirect(t, rec, "/dashboard/admin")

	ck := responseCookie(rec, "authToken")
	if ck == nil || ck.Value != "tok-admin" {
		t.Fatalf("expected auth cookie tok-admin, got %+v", ck)
	}
	if !ck.HttpOnly {
		t.Error("expected HttpOnly auth cookie")
	}

	flash := flashNotifications(t, rec)
	if len(flash) != 1 || flash[0].Title != "Login Successful" || flash[0].Message != "Welcome, Ada!" {
		t.Fatalf("unexpected flash: %+v", flash)
	}

	// The next page shows the carried notification and drops the cookie.
	next := c.do(t, http.MethodGet, "/dashboard/admin", "tok-admin", nil, responseCookie(rec, flashCookieName))
	if next.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", next.Code)
	}
	if !strings.Contains(next.Body.String(), "Welcome, Ada!") {
		t.Error("expected welcome toast on landing page")
	}
	if fc := responseCookie(next, flashCookieName); fc == nil || fc.MaxAge >= 0 {
		t.Errorf("expected flash cookie to be cleared, got %+v", fc)
	}
}

func TestLogin_AgentLanding(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/auth/login", "", url.Values{"email": {"agent@example.com"}, "password": {"secret"}})
	expectRedirect(t, rec, "/dashboard/agent/tickets")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/auth/login", "", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Login Failed") || !strings.Contains(body, "Invalid credentials") {
		t.Errorf("expected failure toast, got %s", body)
	}
	if ck := responseCookie(rec, "authToken"); ck != nil {
		t.Errorf("expected no auth cookie, got %+v", ck)
	}
}

func TestLogin_ValidationBlocksRequest(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/auth/login", "", url.Values{"email": {"not-an-email"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if len(c.backend.find(http.MethodPost, "/auth/login")) != 0 {
		t.Error("invalid form must not reach the backend")
	}
}

func TestLoginPage_AuthenticatedRedirects(t *testing.T) {
	c := newConsole(t, nil)
	expectRedirect(t, c.do(t, http.MethodGet, "/auth/login", "tok-agent", nil), "/dashboard/agent/tickets")
}

func TestLogin_RateLimited(t *testing.T) {
	c := newConsole(t, ratelimit.New(1, time.Minute))
	creds := url.Values{"email": {"admin@example.com"}, "password": {"wrong"}}

	if rec := c.do(t, http.MethodPost, "/auth/login", "", creds); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt: expected 401, got %d", rec.Code)
	}
	rec := c.do(t, http.MethodPost, "/auth/login", "", creds)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), throttledMessage) {
		t.Error("expected throttled message")
	}
	if n := len(c.backend.find(http.MethodPost, "/auth/login")); n != 1 {
		t.Errorf("expected 1 backend login, got %d", n)
	}

	// Viewing the page is never limited.
	if rec := c.do(t, http.MethodGet, "/auth/login", "", nil); rec.Code != http.StatusOK {
		t.Errorf("expected login page 200, got %d", rec.Code)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/auth/logout", "tok-admin", url.Values{})
	expectRedirect(t, rec, "/auth/login")

	ck := responseCookie(rec, "authToken")
	if ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("expected auth cookie cleared, got %+v", ck)
	}
	if len(c.backend.find(http.MethodPost, "/auth/logout")) != 1 {
		t.Error("expected backend logout call")
	}
	flash := flashNotifications(t, rec)
	if len(flash) == 0 || flash[len(flash)-1].Title != "Logged Out" {
		t.Errorf("expected Logged Out notification, got %+v", flash)
	}
}

func TestForgotPassword(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/auth/forgot-password", "", url.Values{"email": {"ada@example.com"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Password Reset Email Sent") || !strings.Contains(body, "Reset link sent.") {
		t.Errorf("unexpected body: %s", body)
	}
}

// ---------------------------------------------------------------------------
// Admin collections
// ---------------------------------------------------------------------------

func TestAgencies_List(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/dashboard/admin/agencies", "tok-admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Central Office") {
		t.Error("expected agency name in list")
	}
}

func TestAgencies_CreateSuccess(t *testing.T) {
	c := newConsole(t, nil)
	form := url.Values{
		"name":    {"North"},
		"address": {"2 High St"},
		"phone":   {"555-0101"},
		"email":   {"north@example.com"},
	}
	rec := c.do(t, http.MethodPost, "/dashboard/admin/agencies", "tok-admin", form)
	expectRedirect(t, rec, "/dashboard/admin/agencies")

	posts := c.backend.find(http.MethodPost, "/agencies")
	if len(posts) != 1 {
		t.Fatalf("expected 1 POST, got %d", len(posts))
	}
	var sent map[string]any
	if err := json.Unmarshal([]byte(posts[0].Body), &sent); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if sent["name"] != "North" {
		t.Errorf("expected name North, got %v", sent["name"])
	}
	if _, ok := sent["id"]; ok {
		t.Error("payload must not carry an id")
	}
	flash := flashNotifications(t, rec)
	if len(flash) != 1 || flash[0].Message != "Agency added successfully." {
		t.Errorf("unexpected flash: %+v", flash)
	}
}

func TestAgencies_CreateValidation(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/dashboard/admin/agencies", "tok-admin", url.Values{"email": {"bad"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "name is required") {
		t.Errorf("expected field error, got %s", rec.Body.String())
	}
	if len(c.backend.find(http.MethodPost, "/agencies")) != 0 {
		t.Error("invalid form must not reach the backend")
	}
}

func TestAgencies_CreateBackendFailureKeepsDraft(t *testing.T) {
	c := newConsole(t, nil)
	c.backend.agencyStatus = http.StatusUnprocessableEntity
	form := url.Values{
		"name":    {"North"},
		"address": {"2 High St"},
		"phone":   {"555-0101"},
		"email":   {"north@example.com"},
	}
	rec := c.do(t, http.MethodPost, "/dashboard/admin/agencies", "tok-admin", form)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="North"`) {
		t.Error("expected draft to be re-rendered")
	}
	if !strings.Contains(body, "The name has already been taken.") {
		t.Error("expected backend message in toast")
	}
}

func TestAgencies_EditForm(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/dashboard/admin/agencies/1/edit", "tok-admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Edit Agency") || !strings.Contains(body, `value="Central Office"`) {
		t.Errorf("unexpected edit form: %s", body)
	}

	if rec := c.do(t, http.MethodGet, "/dashboard/admin/agencies/99/edit", "tok-admin", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown agency, got %d", rec.Code)
	}
}

func TestAgencies_Update(t *testing.T) {
	c := newConsole(t, nil)
	form := url.Values{
		"name":    {"Central"},
		"address": {"1 Main St"},
		"phone":   {"555"},
		"email":   {"central@example.com"},
	}
	rec := c.do(t, http.MethodPost, "/dashboard/admin/agencies/1", "tok-admin", form)
	expectRedirect(t, rec, "/dashboard/admin/agencies")
	if len(c.backend.find(http.MethodPut, "/agencies/1")) != 1 {
		t.Error("expected PUT /agencies/1")
	}
}

func TestAgencies_DeleteRequiresConfirmation(t *testing.T) {
	c := newConsole(t, nil)

	confirm := c.do(t, http.MethodGet, "/dashboard/admin/agencies/1/delete", "tok-admin", nil)
	if confirm.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", confirm.Code)
	}
	if !strings.Contains(confirm.Body.String(), "Are you absolutely sure?") {
		t.Error("expected confirmation page")
	}

	rec := c.do(t, http.MethodPost, "/dashboard/admin/agencies/1/delete", "tok-admin", url.Values{})
	expectRedirect(t, rec, "/dashboard/admin/agencies/1/delete")
	if len(c.backend.find(http.MethodDelete, "/agencies/1")) != 0 {
		t.Fatal("unconfirmed delete must not reach the backend")
	}

	rec = c.do(t, http.MethodPost, "/dashboard/admin/agencies/1/delete", "tok-admin", url.Values{"confirm": {"yes"}})
	expectRedirect(t, rec, "/dashboard/admin/agencies")
	if len(c.backend.find(http.MethodDelete, "/agencies/1")) != 1 {
		t.Error("expected DELETE /agencies/1")
	}
}

func TestUsers_PasswordMismatch(t *testing.T) {
	c := newConsole(t, nil)
	form := url.Values{
		"name":                  {"Dee"},
		"email":                 {"dee@example.com"},
		"role":                  {"agent"},
		"password":              {"one"},
		"password_confirmation": {"two"},
	}
	rec := c.do(t, http.MethodPost, "/dashboard/admin/users", "tok-admin", form)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Passwords do not match!") {
		t.Error("expected mismatch message")
	}
	if len(c.backend.find(http.MethodPost, "/users")) != 0 {
		t.Error("mismatched passwords must not reach the backend")
	}
}

func TestUsers_CreateOmitsConfirmation(t *testing.T) {
	c := newConsole(t, nil)
	form := url.Values{
		"name":                  {"Dee"},
		"email":                 {"dee@example.com"},
		"role":                  {"agent"},
		"password":              {"hunter22"},
		"password_confirmation": {"hunter22"},
	}
	rec := c.do(t, http.MethodPost, "/dashboard/admin/users", "tok-admin", form)
	expectRedirect(t, rec, "/dashboard/admin/users")

	posts := c.backend.find(http.MethodPost, "/users")
	if len(posts) != 1 {
		t.Fatalf("expected 1 POST, got %d", len(posts))
	}
	if strings.Contains(posts[0].Body, "confirmation") {
		t.Errorf("confirmation must not be sent: %s", posts[0].Body)
	}
	if !strings.Contains(posts[0].Body, `"password":"hunter22"`) {
		t.Errorf("expected password in payload: %s", posts[0].Body)
	}
}

// ---------------------------------------------------------------------------
// Ticket queue
// ---------------------------------------------------------------------------

func TestTickets_QueueShowsActions(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodGet, "/dashboard/agent/tickets", "tok-agent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "T-005") {
		t.Error("expected ticket number")
	}
	if !strings.Contains(body, `value="called"`) {
		t.Error("expected call action for a pending ticket")
	}
	if !strings.Contains(body, "N/A") {
		t.Error("expected N/A for missing client")
	}
}

func TestTickets_StatusTransition(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/dashboard/agent/tickets/5/status", "tok-agent", url.Values{"status": {"called"}})
	expectRedirect(t, rec, "/dashboard/agent/tickets")

	puts := c.backend.find(http.MethodPut, "/tickets/5")
	if len(puts) != 1 {
		t.Fatalf("expected 1 PUT, got %d", len(puts))
	}
	if puts[0].Body != `{"status":"called"}` {
		t.Errorf("unexpected payload %s", puts[0].Body)
	}
	flash := flashNotifications(t, rec)
	if len(flash) != 1 || flash[0].Message != "Ticket 5 status updated to called." {
		t.Errorf("unexpected flash: %+v", flash)
	}
}

func TestMutations_ListFetchedOnceAcrossRedirect(t *testing.T) {
	agencyForm := url.Values{
		"name":    {"North"},
		"address": {"2 High St"},
		"phone":   {"555-0101"},
		"email":   {"north@example.com"},
	}
	tests := []struct {
		name     string
		path     string
		token    string
		form     url.Values
		redirect string
		list     string
	}{
		{"create agency", "/dashboard/admin/agencies", "tok-admin", agencyForm, "/dashboard/admin/agencies", "/agencies"},
		{"update agency", "/dashboard/admin/agencies/1", "tok-admin", agencyForm, "/dashboard/admin/agencies", "/agencies"},
		{"delete agency", "/dashboard/admin/agencies/1/delete", "tok-admin", url.Values{"confirm": {"yes"}}, "/dashboard/admin/agencies", "/agencies"},
		{"ticket status", "/dashboard/agent/tickets/5/status", "tok-agent", url.Values{"status": {"called"}}, "/dashboard/agent/tickets", "/tickets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConsole(t, nil)
			rec := c.do(t, http.MethodPost, tt.path, tt.token, tt.form)
			expectRedirect(t, rec, tt.redirect)
			if got := len(c.backend.find(http.MethodGet, tt.list)); got != 0 {
				t.Fatalf("mutation fetched %s %d times", tt.list, got)
			}

			page := c.do(t, http.MethodGet, tt.redirect, tt.token, nil, responseCookie(rec, flashCookieName))
			if page.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", page.Code)
			}
			if got := len(c.backend.find(http.MethodGet, tt.list)); got != 1 {
				t.Errorf("expected 1 GET %s after redirect, got %d", tt.list, got)
			}
		})
	}
}

func TestTickets_UnknownStatus(t *testing.T) {
	c := newConsole(t, nil)
	rec := c.do(t, http.MethodPost, "/dashboard/agent/tickets/5/status", "tok-agent", url.Values{"status": {"archived"}})
	expectRedirect(t, rec, "/dashboard/agent/tickets")
	if len(c.backend.find(http.MethodPut, "/tickets/5")) != 0 {
		t.Error("unknown status must not reach the backend")
	}
	flash := flashNotifications(t, rec)
	if len(flash) != 1 || flash[0].Level != notify.LevelError {
		t.Errorf("expected error notification, got %+v", flash)
	}
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func TestMetricsEndpoints(t *testing.T) {
	c := newConsole(t, nil)
	c.do(t, http.MethodGet, "/dashboard", "tok-client", nil)

	rec := c.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dktadmin_session_restorations_total") {
		t.Error("expected session restoration counter in exposition")
	}

	rec = c.do(t, http.MethodGet, "/metrics/summary", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
