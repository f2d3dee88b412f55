package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// rateWindow is one fixed counting window for a single client.
type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimit caps requests per authenticated user over a fixed window.
// Counters live in process memory, so the cap applies per instance. The
// limiter keys on the login attached by RequireAuth and falls back to the
// remote address for unauthenticated paths. A non-positive limit disables
// the middleware.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu      sync.Mutex
		windows = make(map[string]*rateWindow)
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if user, ok := GetUserContext(r.Context()); ok {
				key = user.User.Login
			}

			now := time.Now()
			mu.Lock()
			win, ok := windows[key]
			if !ok || now.After(win.resetAt) {
				win = &rateWindow{resetAt: now.Add(window)}
				windows[key] = win
			}
			win.count++
			count, resetAt := win.count, win.resetAt
			if len(windows) > 10000 {
				for k, v := range windows {
					if now.After(v.resetAt) {
						delete(windows, k)
					}
				}
			}
			mu.Unlock()

			remaining := limit - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > limit {
				retryAfter := int(time.Until(resetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","message":"too many requests, retry later"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
