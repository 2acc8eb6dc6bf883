package ticket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/notify"
	"github.com/alecgard/dktadmin/internal/resource"
)

func TestActions(t *testing.T) {
	tests := []struct {
		status Status
		want   []Status
	}{
		{StatusPending, []Status{StatusCalled}},
		{StatusCalled, []Status{StatusCompleted, StatusCancelled}},
		{StatusCompleted, nil},
		{StatusCancelled, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := tt.status.Actions()
			if len(got) != len(tt.want) {
				t.Fatalf("Actions() = %+v, want targets %v", got, tt.want)
			}
			for i, a := range got {
				if a.Target != tt.want[i] {
					t.Errorf("action %d target = %q, want %q", i, a.Target, tt.want[i])
				}
			}
			if tt.status.Terminal() != (len(tt.want) == 0) {
				t.Errorf("Terminal() = %v", tt.status.Terminal())
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Called "); err != nil || s != StatusCalled {
		t.Errorf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestPartyFallbacks(t *testing.T) {
	var tk Ticket
	if tk.ClientName() != "N/A" || tk.ClientEmail() != "N/A" || tk.AgencyName() != "N/A" {
		t.Error("missing relations should render N/A")
	}
	tk.User = &Party{Name: "Ana", Email: "ana@example.com"}
	tk.Agency = &Party{Name: "Central"}
	if tk.ClientName() != "Ana" || tk.AgencyName() != "Central" {
		t.Errorf("ticket = %+v", tk)
	}
}

type recorded struct {
	method, path, body string
}

func newQueue(t *testing.T, status int) (*Queue, *[]recorded, *notify.Recorder) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{r.Method, r.URL.Path, string(body)})
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{}`)
			return
		}
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]Ticket{{ID: 1, TicketNumber: "A-001", Status: StatusCalled}})
			return
		}
		_, _ = io.WriteString(w, `{"id":1,"status":"called"}`)
	}))
	t.Cleanup(srv.Close)

	api, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	n := &notify.Recorder{}
	return NewQueue(api, resource.Config{Token: "tok", Notifier: n}), &calls, n
}

func TestTransition(t *testing.T) {
	q, calls, n := newQueue(t, http.StatusOK)

	if err := q.Transition(context.Background(), 1, StatusCalled); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	got := *calls
	if len(got) != 2 {
		t.Fatalf("calls = %+v", got)
	}
	if got[0].method != http.MethodPut || got[0].path != "/tickets/1" || got[0].body != `{"status":"called"}` {
		t.Errorf("update call = %+v", got[0])
	}
	if got[1].method != http.MethodGet || got[1].path != "/tickets" {
		t.Errorf("refetch call = %+v", got[1])
	}
	if items := q.Items(); len(items) != 1 || items[0].Status != StatusCalled {
		t.Errorf("items = %+v", items)
	}
	if msg := n.All()[0].Message; msg != "Ticket 1 status updated to called." {
		t.Errorf("message = %q", msg)
	}
	if q.Updating() {
		t.Error("updating flag not cleared")
	}
}

func TestTransition_Failure(t *testing.T) {
	q, calls, n := newQueue(t, http.StatusUnprocessableEntity)

	if err := q.Transition(context.Background(), 1, StatusCompleted); err == nil {
		t.Fatal("expected error")
	}
	if len(*calls) != 1 {
		t.Errorf("refetched after failure: %+v", *calls)
	}
	got := n.All()
	if len(got) != 1 || got[0].Level != notify.LevelError || got[0].Message != "An error occurred" {
		t.Errorf("notifications = %+v", got)
	}
}
