// ABOUTME: HTTP middleware for the dev backend: request logging and bearer authentication
// ABOUTME: The logging writer keeps http.Hijacker so websocket upgrades pass through

package devserver

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/google/uuid"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// LogRequest logs HTTP requests with timing and correlation ID.
// The client's X-Request-ID is reused when present.
func LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		slog.Info("Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

type principalKey struct{}

// principal is the authenticated caller
type principal struct {
	claims *Claims
	user   *User
}

func principalFrom(r *http.Request) principal {
	p, _ := r.Context().Value(principalKey{}).(principal)
	return p
}

// scopeRoles lists the roles allowed to read each dashboard scope
var scopeRoles = map[string][]models.Role{
	"admin":    {models.RoleAdmin},
	"staff":    {models.RoleStaff, models.RoleShipper, models.RoleAdmin},
	"customer": {models.RoleCustomer},
	"dev":      {models.RoleAdmin},
}

// requireRole rejects callers without a valid bearer token (401) or with the wrong role (403)
func (s *Server) requireRole(scope string) func(http.HandlerFunc) http.HandlerFunc {
	allowed := scopeRoles[scope]
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p, err := s.authenticate(r.Header.Get("Authorization"))
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, failure{Message: "Session expired. Please sign in again."})
				return
			}
			ok := false
			for _, role := range allowed {
				if p.user.Role == role {
					ok = true
				}
			}
			if !ok {
				slog.Warn("Authorization denied", "path", r.URL.Path, "scope", scope, "user_role", p.user.Role, "username", p.user.Username)
				writeFailure(w, http.StatusForbidden, failure{Message: "Insufficient permissions"})
				return
			}
			next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		}
	}
}

// authenticate resolves an "Authorization: Bearer <token>" header
func (s *Server) authenticate(header string) (principal, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return principal{}, models.NewError(models.ErrUnauthorized, "missing bearer token")
	}
	return s.authenticateToken(token)
}

func (s *Server) authenticateToken(token string) (principal, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return principal{}, err
	}
	user, ok := s.users.Get(claims.Subject)
	if !ok {
		return principal{}, models.NewError(models.ErrUnauthorized, "account no longer exists")
	}
	return principal{claims: claims, user: user}, nil
}
