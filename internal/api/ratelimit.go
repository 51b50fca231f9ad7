package api

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter tracks request counts per IP over a sliding window.
type RateLimiter struct {
	mu      sync.RWMutex
	windows map[string]*windowInfo
	// Configuration
	maxRequests int
	windowSize  time.Duration
}

type windowInfo struct {
	count     int
	firstTime time.Time
}

// NewRateLimiter creates a rate limiter allowing maxRequests per IP per
// windowSize.
func NewRateLimiter(maxRequests int, windowSize time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:     make(map[string]*windowInfo),
		maxRequests: maxRequests,
		windowSize:  windowSize,
	}
	// Start cleanup goroutine
	go rl.cleanup()
	return rl
}

// DefaultRateLimiter returns a rate limiter with sensible defaults
// for a small gateway: 60 requests per minute per IP.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(60, time.Minute)
}

// getIP extracts the client IP from the request
func getIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxy)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip, _, err := net.SplitHostPort(xff); err == nil {
			return ip
		}
		// Maybe no port
		if net.ParseIP(xff) != nil {
			return xff
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Allow records one request from ip and reports whether it is within
// the limit.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	info, exists := rl.windows[ip]

	if !exists || now.Sub(info.firstTime) > rl.windowSize {
		rl.windows[ip] = &windowInfo{count: 1, firstTime: now}
		return true
	}

	info.count++
	return info.count <= rl.maxRequests
}

// Remaining reports how many requests the IP has left in its current
// window.
func (rl *RateLimiter) Remaining(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	info, exists := rl.windows[ip]
	if !exists || time.Since(info.firstTime) > rl.windowSize {
		return rl.maxRequests
	}
	if info.count >= rl.maxRequests {
		return 0
	}
	return rl.maxRequests - info.count
}

// cleanup periodically drops expired windows so the map does not grow
// with every IP ever seen.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for ip, info := range rl.windows {
			if now.Sub(info.firstTime) > rl.windowSize {
				delete(rl.windows, ip)
			}
		}
		rl.mu.Unlock()
	}
}
