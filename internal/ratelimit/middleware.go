package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ClientKey returns the client address of r without the port. It relies on
// chi's RealIP middleware having rewritten RemoteAddr when behind a proxy.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware limits the unsafe requests (POST and friends) reaching next by
// client address. GET requests pass through so the form can always be
// shown. Rejections are handed to reject, or answered with a plain 429 when
// reject is nil.
//
// Rate-limit headers are set on limited requests:
//
//	X-RateLimit-Limit     maximum attempts in the window
//	X-RateLimit-Remaining attempts left
//	X-RateLimit-Reset     Unix time when the bucket is full again
func Middleware(limiter *Limiter, reject http.Handler, onReject ...func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := ClientKey(r)
			allowed := limiter.Allow(key)
			limit, remaining, resetAt := limiter.Status(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

			if !allowed {
				for _, fn := range onReject {
					fn()
				}
				retry := int(time.Until(resetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				if reject != nil {
					reject.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Too many attempts. Try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
