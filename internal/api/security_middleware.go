package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"

	"pmt/internal/auth"
	"pmt/internal/db"
)

// Context keys for user data
type contextKey string

const userContextKey contextKey = "user"

// authMiddleware validates Bearer JWTs against the route registry. The token
// must still be present in the tokens table, which is how logout and
// revocation take effect before the JWT itself expires.
func (s *Server) authMiddleware(registry *RouteRegistry) func(http.Handler) http.Handler {
	jwtManager := auth.NewJWTManager(s.Config.JWTSecret, auth.DefaultTokenDuration)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			metadata, found := registry.GetRouteMetadata(routePattern(r), r.Method)
			if found && !metadata.RequiresAuthentication {
				next.ServeHTTP(w, r)
				return
			}
			if !found {
				// Unregistered paths default to authenticated access
				metadata.RequiredRole = "user"
			}

			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			if _, err := s.DB.ValidateToken(db.HashToken(token, s.Config.TokenSalt)); err != nil {
				switch {
				case errors.Is(err, sql.ErrNoRows):
					writeError(w, http.StatusUnauthorized, "Token has been revoked")
				case errors.Is(err, db.ErrTokenExpired):
					writeError(w, http.StatusUnauthorized, "Token has expired")
				default:
					writeError(w, http.StatusInternalServerError, "Token validation failed")
				}
				return
			}

			user, err := s.DB.GetUserByID(claims.UserID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unknown user")
				return
			}

			if role := metadata.RequiredRole; role != "" {
				allowed := false
				switch role {
				case "user":
					allowed = user.Role.HasPermission("read")
				case "publisher":
					allowed = user.Role.HasPermission("publish")
				case "admin":
					allowed = user.Role.HasPermission("admin")
				}
				if !allowed {
					writeError(w, http.StatusForbidden, "Insufficient permissions")
					return
				}
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// JSON sanitization middleware
func (s *Server) jsonSanitizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only handle JSON POST/PUT requests
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) &&
			strings.Contains(r.Header.Get("Content-Type"), "application/json") {

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			r.Body.Close()

			var data interface{}
			if err := json.Unmarshal(body, &data); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid JSON")
				return
			}

			policy := bluemonday.StrictPolicy()
			sanitized := sanitizeData(data, policy)

			newBody, err := json.Marshal(sanitized)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to encode sanitized JSON")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(newBody))
			r.ContentLength = int64(len(newBody))
			r.Header.Set("Content-Length", strconv.Itoa(len(newBody)))
		}

		next.ServeHTTP(w, r)
	})
}

// Rate limiting middleware
type rateLimiter struct {
	mu       sync.RWMutex
	visitors map[string]*visitor
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *rateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 5*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(ip string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:   limit - 1,
			lastSeen: time.Now(),
		}
		return true
	}

	// Token bucket refill
	now := time.Now()
	elapsed := now.Sub(v.lastSeen)
	v.tokens += int(elapsed.Minutes())
	if v.tokens > limit {
		v.tokens = limit
	}
	v.lastSeen = now

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

func (s *Server) rateLimitMiddleware(registry *RouteRegistry) func(http.Handler) http.Handler {
	limiter := newRateLimiter()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			if metadata, found := registry.GetRouteMetadata(routePattern(r), r.Method); found {
				if metadata.RateLimit > 0 && !limiter.allow(ip, metadata.RateLimit) {
					writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Security headers middleware
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// Request logging middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Printf("[%s] %s %s - %d (%v) - %s",
			getClientIP(r),
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			time.Since(start),
			r.UserAgent(),
		)
	})
}

// Request size limiting middleware
func (s *Server) requestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern returns the mux route template when available so that
// parameterized paths match their registry entries.
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func sanitizeData(v interface{}, policy *bluemonday.Policy) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, sub := range val {
			val[k] = sanitizeData(sub, policy)
		}
		return val
	case []interface{}:
		for i, sub := range val {
			val[i] = sanitizeData(sub, policy)
		}
		return val
	case string:
		return policy.Sanitize(val)
	default:
		return v
	}
}

// bearerToken extracts the token from an Authorization: Bearer header, or
// returns empty when the header is absent or malformed.
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func getClientIP(r *http.Request) string {
	// X-Forwarded-For wins when the API sits behind a proxy
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if strings.Contains(ip, ":") {
		ip, _, _ = strings.Cut(ip, ":")
	}
	return ip
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getUserFromContext retrieves the authenticated user from request context
func getUserFromContext(ctx context.Context) *db.User {
	user, ok := ctx.Value(userContextKey).(*db.User)
	if !ok {
		return nil
	}
	return user
}
