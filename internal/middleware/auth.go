package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/auth"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	log "github.com/sirupsen/logrus"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey contextKey = "user"
)

var (
	errNoUserContext = apperr.New(apperr.CodeAuthRequired, "authentication required", nil)
	errForbidden     = apperr.New(apperr.CodeForbidden, "insufficient permissions", nil)
	errRateLimited   = apperr.New(apperr.CodeRateLimited, "rate limit exceeded", nil)
)

// publicPaths are served without a token.
var publicPaths = map[string]bool{
	"/health":           true,
	"/metrics":          true,
	"/api/auth/login":   true,
	"/api/auth/refresh": true,
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate validates the bearer token and stores its claims in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := m.authService.ExtractTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			apperr.Write(w, err)
			return
		}
		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			log.WithFields(log.Fields{"path": r.URL.Path, "ip": getClientIP(r, false)}).Debug("Rejected token")
			apperr.Write(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission middleware checks if the user's role grants action
func (m *AuthMiddleware) RequirePermission(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				apperr.Write(w, errNoUserContext)
				return
			}
			if !claims.Role.Can(action) {
				log.WithFields(log.Fields{"user": claims.Username, "role": claims.Role, "action": action}).
					Warn("Permission denied")
				apperr.Write(w, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// WithClaims returns ctx carrying claims, as Authenticate does.
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// RateLimitMiddleware provides a sliding-window rate limit per client IP
type RateLimitMiddleware struct {
	requests   map[string][]time.Time
	mu         sync.Mutex
	now        func() time.Time
	trustProxy bool
	lastSweep  time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware. Forwarding headers only
// identify the client when trustProxy is set; otherwise the connection address does.
func NewRateLimitMiddleware(trustProxy bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests:   make(map[string][]time.Time),
		now:        time.Now,
		trustProxy: trustProxy,
	}
}

// RateLimit allows maxRequests per client IP within window.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.allow(getClientIP(r, m.trustProxy), maxRequests, window) {
				apperr.Write(w, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) allow(clientIP string, maxRequests int, window time.Duration) bool {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= window {
		m.sweep(windowStart)
		m.lastSweep = now
	}

	recent := m.requests[clientIP][:0]
	for _, ts := range m.requests[clientIP] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= maxRequests {
		m.requests[clientIP] = recent
		return false
	}
	m.requests[clientIP] = append(recent, now)
	return true
}

// sweep drops clients with no request after windowStart. Callers hold m.mu.
func (m *RateLimitMiddleware) sweep(windowStart time.Time) {
	for ip, times := range m.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(m.requests, ip)
		}
	}
}

func (m *RateLimitMiddleware) clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// getClientIP returns the connection address, or the first forwarded address when the
// request came through a trusted proxy.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return strings.TrimSpace(ip)
		}
	}
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
