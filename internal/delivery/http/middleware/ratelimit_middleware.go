package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"clinic-booking/pkg/response"

	"golang.org/x/time/rate"
)

const (
	visitorSweepInterval = time.Minute
	visitorIdleTimeout   = 3 * time.Minute
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client IP. Idle buckets are swept
// by a background goroutine until Stop is called.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	r        rate.Limit
	burst    int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		r:        rate.Limit(rps),
		burst:    burst,
		stopChan: make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.sweepLoop()

	return rl
}

// Stop ends the sweeper. Safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
		rl.wg.Wait()
	})
}

func (rl *RateLimiter) sweepLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(visitorSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.seen) > visitorIdleTimeout {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.visitors[ip]; ok {
		v.seen = time.Now()
		return v.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.visitors[ip] = &visitor{lim: l, seen: time.Now()}
	return l
}

// Handle rejects with 429 once the client's bucket is empty.
func (rl *RateLimiter) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			response.TooManyRequests(w, "Too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
