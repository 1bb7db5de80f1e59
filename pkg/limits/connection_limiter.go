// Package limits bounds concurrent live connections per client address.
package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ConnectionLimiter limits concurrent connections per IP address.
type ConnectionLimiter struct {
	maxPerIP    int
	trustProxy  bool
	connections sync.Map // map[string]*atomic.Int32

	totalBlocked atomic.Int64
	totalAllowed atomic.Int64
}

// NewConnectionLimiter creates a limiter. A trusted proxy lets the
// X-Forwarded-For and X-Real-IP headers name the client.
func NewConnectionLimiter(maxPerIP int, trustProxy bool) *ConnectionLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 100
	}
	return &ConnectionLimiter{
		maxPerIP:   maxPerIP,
		trustProxy: trustProxy,
	}
}

// Acquire takes a slot for ip and reports whether one was free.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	counter, _ := cl.connections.LoadOrStore(ip, &atomic.Int32{})
	c := counter.(*atomic.Int32)

	for {
		cur := c.Load()
		if int(cur) >= cl.maxPerIP {
			cl.totalBlocked.Add(1)
			return false
		}
		if c.CompareAndSwap(cur, cur+1) {
			cl.totalAllowed.Add(1)
			return true
		}
	}
}

// Release frees a slot taken for ip.
func (cl *ConnectionLimiter) Release(ip string) {
	if counter, ok := cl.connections.Load(ip); ok {
		c := counter.(*atomic.Int32)
		if c.Add(-1) <= 0 {
			cl.connections.Delete(ip)
		}
	}
}

// Count returns the open connections of ip.
func (cl *ConnectionLimiter) Count(ip string) int {
	if counter, ok := cl.connections.Load(ip); ok {
		return int(counter.(*atomic.Int32).Load())
	}
	return 0
}

// TotalBlocked returns the number of refused connections.
func (cl *ConnectionLimiter) TotalBlocked() int64 {
	return cl.totalBlocked.Load()
}

// TotalAllowed returns the number of accepted connections.
func (cl *ConnectionLimiter) TotalAllowed() int64 {
	return cl.totalAllowed.Load()
}

// Middleware holds a slot for the whole request, which for a websocket is
// the whole session.
func (cl *ConnectionLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, cl.trustProxy)

			if !cl.Acquire(ip) {
				http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
				return
			}
			defer cl.Release(ip)

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from r.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
