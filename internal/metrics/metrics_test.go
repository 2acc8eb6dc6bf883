package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestSessionRecorder(t *testing.T) {
	m := New()
	m.SessionRestored("authenticated")
	m.SessionRestored("authenticated")
	m.SessionRestored("invalidated")
	m.LoginSucceeded("admin")
	m.LoginFailed()
	m.LoggedOut(false)
	m.IncRateLimitRejection("login")

	s, err := m.Summarize()
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Sessions.Restored != 2 || s.Sessions.Invalidated != 1 {
		t.Errorf("sessions = %+v", s.Sessions)
	}
	if s.Logins.Successes != 1 || s.Logins.Failures != 1 || s.Logins.RateLimited != 1 {
		t.Errorf("logins = %+v", s.Logins)
	}
	if s.Logins.Logouts != 1 || s.Logins.FailedRevocations != 1 {
		t.Errorf("logouts = %+v", s.Logins)
	}
}

func TestInstrumentTransport(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	m := New()
	client := &http.Client{Transport: m.InstrumentTransport(nil)}
	for _, p := range []string{"/ok", "/missing"} {
		resp, err := client.Get(backend.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	f := family(t, m, "dktadmin_backend_requests_total")
	if got := sumCounter(f, nil); got != 2 {
		t.Errorf("backend requests = %v, want 2", got)
	}
	if got := sumCounter(f, labelIs("code", "404")); got != 1 {
		t.Errorf("404s = %v, want 1", got)
	}
	if got := errorRate(f, "code"); got != 0.5 {
		t.Errorf("error rate = %v, want 0.5", got)
	}
}

func TestObserveHTTPAndSummaryHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/dashboard", 200, 20*time.Millisecond)
	m.ObserveHTTP("POST", "/auth/login", 429, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var s Summary
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Console.TotalRequests != 2 || s.Console.ErrorRate != 0.5 {
		t.Errorf("console = %+v", s.Console)
	}
	if s.Console.P50Latency <= 0 {
		t.Errorf("p50 = %v", s.Console.P50Latency)
	}
}

func TestExposition(t *testing.T) {
	m := New()
	m.SessionRestored("anonymous")

	w := httptest.NewRecorder()
	m.Exposition().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `dktadmin_session_restorations_total{outcome="anonymous"} 1`) {
		t.Errorf("exposition missing restoration counter:\n%s", w.Body.String())
	}
}

func TestHistogramPercentileEmpty(t *testing.T) {
	if got := histogramPercentile(nil, 0.5); got != 0 {
		t.Errorf("nil family = %v", got)
	}
}
