package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiterEntry: tracks a rate limiter and its last use time
type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimit: manages connection rate limiters per IP address
type IPRateLimit struct {
	limiters map[string]*ipLimiterEntry
	every    time.Duration
	burst    int
	mu       sync.Mutex
}

// NewIPRateLimit: 10 connections per minute, burst of 5
func NewIPRateLimit() *IPRateLimit {
	return NewIPRateLimitWith(6*time.Second, 5)
}

func NewIPRateLimitWith(every time.Duration, burst int) *IPRateLimit {
	return &IPRateLimit{
		limiters: make(map[string]*ipLimiterEntry),
		every:    every,
		burst:    burst,
	}
}

// Allow: checks if an IP is allowed to open another connection
func (iprl *IPRateLimit) Allow(ip string) bool {
	iprl.mu.Lock()
	defer iprl.mu.Unlock()

	entry, exists := iprl.limiters[ip]
	if !exists {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(rate.Every(iprl.every), iprl.burst)}
		iprl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// Len: number of tracked addresses
func (iprl *IPRateLimit) Len() int {
	iprl.mu.Lock()
	defer iprl.mu.Unlock()

	return len(iprl.limiters)
}

// Cleanup: removes IP limiters that haven't been used for maxIdle
func (iprl *IPRateLimit) Cleanup(maxIdle time.Duration) {
	iprl.mu.Lock()
	defer iprl.mu.Unlock()

	now := time.Now()
	for ip, entry := range iprl.limiters {
		if now.Sub(entry.lastSeen) > maxIdle {
			delete(iprl.limiters, ip)
		}
	}
}

// ClientIP: RemoteAddr without the port. Forwarded headers are ignored since clients can spoof them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
