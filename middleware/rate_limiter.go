// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/sa3tha/sa3tha_backend/models"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles per client IP and blocks an IP for blockDuration once
// it exceeds its budget
type RateLimiter struct {
	ips            map[string]*clientLimiter
	blockedIPs     map[string]time.Time
	mu             sync.Mutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	idleTTL        time.Duration
	endpointLimits map[string]endpointLimit
	now            func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		ips:           make(map[string]*clientLimiter),
		blockedIPs:    make(map[string]time.Time),
		defaultLimit:  rate.Every(100 * time.Millisecond), // 10 requests per second
		defaultBurst:  20,
		blockDuration: 5 * time.Minute,
		idleTTL:       10 * time.Minute,
		endpointLimits: map[string]endpointLimit{
			// contact creation notifies an expert; keep it slow
			"/api/contacts": {limit: rate.Every(2 * time.Second), burst: 5},
			// browsing is geo-heavy
			"/api/experts/near": {limit: rate.Every(200 * time.Millisecond), burst: 10},
		},
		now: time.Now,
	}
}

// SetEndpointLimit overrides the budget for one route path
func (r *RateLimiter) SetEndpointLimit(path string, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointLimits[path] = endpointLimit{limit: limit, burst: burst}
}

// Cleanup drops expired blocks and the limiters of clients idle for longer
// than idleTTL
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for ip, blockUntil := range r.blockedIPs {
		if now.After(blockUntil) {
			r.forget(ip)
		}
	}
	for key, cl := range r.ips {
		ip := key[:strings.LastIndex(key, "|")]
		if _, blocked := r.blockedIPs[ip]; blocked {
			continue
		}
		if now.Sub(cl.lastSeen) > r.idleTTL {
			delete(r.ips, key)
		}
	}
}

// Tracked returns how many per-route limiters are held
func (r *RateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ips)
}

// forget must be called with mu held
func (r *RateLimiter) forget(ip string) {
	delete(r.blockedIPs, ip)
	prefix := ip + "|"
	for key := range r.ips {
		if strings.HasPrefix(key, prefix) {
			delete(r.ips, key)
		}
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			path := c.Path()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if r.now().Before(blockUntil) {
					r.mu.Unlock()
					return tooManyRequests(c, blockUntil)
				}
				r.forget(ip)
			}

			limit, burst := r.defaultLimit, r.defaultBurst
			if el, ok := r.endpointLimits[path]; ok {
				limit, burst = el.limit, el.burst
			}
			now := r.now()
			key := ip + "|" + path
			cl, ok := r.ips[key]
			if !ok {
				cl = &clientLimiter{limiter: rate.NewLimiter(limit, burst)}
				r.ips[key] = cl
			}
			cl.lastSeen = now

			if !cl.limiter.AllowN(now, 1) {
				blockUntil := now.Add(r.blockDuration)
				r.blockedIPs[ip] = blockUntil
				r.mu.Unlock()
				return tooManyRequests(c, blockUntil)
			}
			r.mu.Unlock()

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, retryAfter time.Time) error {
	c.Response().Header().Set("Retry-After", retryAfter.UTC().Format(http.TimeFormat))
	return c.JSON(http.StatusTooManyRequests, models.Response{
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests",
	})
}
