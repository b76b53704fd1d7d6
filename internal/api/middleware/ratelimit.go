package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// clientWindow counts one client's requests in the current fixed window
type clientWindow struct {
	hits    int
	resetAt time.Time
}

// RateLimiter caps requests per client IP in fixed windows. Transcriptions
// are expensive, so it guards only the transcription routes.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter allows limit requests per window for each client IP
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Close stops the background sweep
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, cw := range rl.clients {
		if !now.Before(cw.resetAt) {
			delete(rl.clients, ip)
		}
	}
}

// take counts a request from ip and reports whether it fits the window,
// and how long until the window resets
func (rl *RateLimiter) take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	cw := rl.clients[ip]
	if cw == nil || !now.Before(cw.resetAt) {
		cw = &clientWindow{resetAt: now.Add(rl.window)}
		rl.clients[ip] = cw
	}
	cw.hits++
	return cw.hits <= rl.limit, cw.resetAt.Sub(now)
}

type RateLimitEntry struct {
	IP      string    `json:"ip"`
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// RateLimitStatus is the admin view of the limiter
type RateLimitStatus struct {
	Limit   int              `json:"limit"`
	Window  string           `json:"window"`
	Entries []RateLimitEntry `json:"entries"`
}

// Status lists clients whose window is still open
func (rl *RateLimiter) Status() RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	st := RateLimitStatus{
		Limit:   rl.limit,
		Window:  rl.window.String(),
		Entries: make([]RateLimitEntry, 0, len(rl.clients)),
	}
	now := rl.now()
	for ip, cw := range rl.clients {
		if now.Before(cw.resetAt) {
			st.Entries = append(st.Entries, RateLimitEntry{IP: ip, Count: cw.hits, ResetAt: cw.resetAt})
		}
	}
	return st
}

// Clear forgets every client
func (rl *RateLimiter) Clear() {
	rl.mu.Lock()
	rl.clients = make(map[string]*clientWindow)
	rl.mu.Unlock()
}

// Handler answers 429 with Retry-After once a client exceeds the limit.
// RemoteAddr is the client IP after chi's RealIP.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, reset := rl.take(r.RemoteAddr)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Seconds())+1))
			writeJSONError(w, `{"success":false,"error":"too many requests, try again later"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
