package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/alecgard/dktadmin/internal/notify"
)

const flashCookieName = "dktadmin_flash"

// flash is the per-request Notifier. Notifications raised before a redirect
// travel in a short-lived cookie and are shown by the next rendered page.
type flash struct {
	w      http.ResponseWriter
	secure bool

	mu       sync.Mutex
	incoming []notify.Notification
	pending  []notify.Notification
}

func newFlash(w http.ResponseWriter, r *http.Request, secure bool) *flash {
	f := &flash{w: w, secure: secure}
	if c, err := r.Cookie(flashCookieName); err == nil {
		if data, err := base64.RawURLEncoding.DecodeString(c.Value); err == nil {
			_ = json.Unmarshal(data, &f.incoming)
		}
	}
	return f
}

func (f *flash) Notify(n notify.Notification) {
	f.mu.Lock()
	f.pending = append(f.pending, n)
	f.mu.Unlock()
}

// carry stores every unseen notification for the next request. Call it
// before writing a redirect.
func (f *flash) carry() {
	f.mu.Lock()
	all := append(append([]notify.Notification(nil), f.incoming...), f.pending...)
	hadIncoming := len(f.incoming) > 0
	f.incoming, f.pending = nil, nil
	f.mu.Unlock()

	if len(all) == 0 {
		if hadIncoming {
			f.clear()
		}
		return
	}
	data, err := json.Marshal(all)
	if err != nil {
		return
	}
	http.SetCookie(f.w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// take returns every notification to show on the page being rendered and
// drops the cookie. Call it before writing the response header.
func (f *flash) take() []notify.Notification {
	f.mu.Lock()
	all := append(append([]notify.Notification(nil), f.incoming...), f.pending...)
	hadIncoming := len(f.incoming) > 0
	f.incoming, f.pending = nil, nil
	f.mu.Unlock()

	if hadIncoming {
		f.clear()
	}
	return all
}

func (f *flash) clear() {
	http.SetCookie(f.w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   f.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

const flashContextKey contextKey = "flash"

func contextWithFlash(ctx context.Context, f *flash) context.Context {
	return context.WithValue(ctx, flashContextKey, f)
}

func flashFromContext(ctx context.Context) *flash {
	f, _ := ctx.Value(flashContextKey).(*flash)
	return f
}

// notifierFor returns the request's flash, or a Discard notifier outside the
// session middleware.
func notifierFor(r *http.Request) notify.Notifier {
	if f := flashFromContext(r.Context()); f != nil {
		return f
	}
	return notify.Discard{}
}
