package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/logging"
)

// staleClientAfter is how long an idle client's limiter is kept
const staleClientAfter = 10 * time.Minute

// RateLimitConfig holds configuration for the rate limiter middleware
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	clients   map[string]*clientLimiter
	lastPrune time.Time
}

func (s *limiterSet) get(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastPrune) > staleClientAfter {
		for key, cl := range s.clients {
			if now.Sub(cl.lastSeen) > staleClientAfter {
				delete(s.clients, key)
			}
		}

		s.lastPrune = now
	}

	cl, ok := s.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.clients[ip] = cl
	}

	cl.lastSeen = now

	return cl.limiter
}

// RateLimiter enforces a per-client token bucket and answers 429 when it is empty
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	set := &limiterSet{cfg: cfg, clients: make(map[string]*clientLimiter), lastPrune: time.Now()}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := set.get(clientIP(r), time.Now())

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, 0)
				return
			}

			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				writeTooManyRequests(w, int(delay.Seconds())+1)

				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses RemoteAddr only; forwarded headers are not trusted
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}

	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error: "rate limit exceeded",
		Type:  "rate_limited",
	})
}

// requestLogger logs one line per request through the application logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger := logging.WithFields(map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
		})

		if ww.Status() >= http.StatusInternalServerError {
			logger.Warn("Request failed")
		} else {
			logger.Debug("Request served")
		}
	})
}

// recoverer turns a handler panic into a 500 with the standard error body
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logging.WithFields(map[string]any{
				"request_id": middleware.GetReqID(r.Context()),
				"panic":      rec,
			}).Error("Handler panicked")

			writeError(w, errors.New(errors.ErrTypeInternal, "internal server error"))
		}()

		next.ServeHTTP(w, r)
	})
}
