// ABOUTME: Dev backend implementing the restaurant REST auth API, role dashboards and realtime hub
// ABOUTME: Used for local runs of the console and by the end-to-end tests

package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/gorilla/mux"
)

// Options configures a Server
type Options struct {
	Seed         []SeedUser    // defaults to DefaultSeed
	JWTSecret    string        // HS256 signing secret
	TokenTTL     time.Duration // access token lifetime, default 1h
	RateLimit    int           // login attempts per identifier per RateWindow, default 5
	RateWindow   time.Duration // default 1m
	CaptchaAfter int           // consecutive failures before a captcha is demanded, default 3
	BcryptCost   int           // default bcrypt.MinCost
}

// Server is the dev backend
type Server struct {
	users         *Users
	issuer        *Issuer
	limiter       *RateLimiter
	failures      *FailureTracker
	resets        *oneTimeTokens
	verifications *oneTimeTokens
	data          *Data
	hub           *Hub
	metrics       *Metrics
	router        *mux.Router
}

// New builds a Server with seeded users and demo data
func New(opts Options) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("JWT secret is required")
	}
	seed := opts.Seed
	if len(seed) == 0 {
		seed = DefaultSeed
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.CaptchaAfter == 0 {
		opts.CaptchaAfter = 3
	}

	users, err := NewUsers(seed, opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	s := &Server{
		users:         users,
		issuer:        NewIssuer(opts.JWTSecret, opts.TokenTTL),
		limiter:       NewRateLimiter(opts.RateLimit, opts.RateWindow),
		failures:      NewFailureTracker(opts.CaptchaAfter),
		resets:        newOneTimeTokens(30 * time.Minute),
		verifications: newOneTimeTokens(24 * time.Hour),
		data:          NewData(),
		hub:           NewHub(),
	}
	s.metrics = NewMetrics(s.hub.Count)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(LogRequest, s.metrics.Instrument)

	r.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/login", s.login).Methods(http.MethodPost)
	auth.HandleFunc("/signup", s.signup).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", s.forgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", s.resetPassword).Methods(http.MethodPost)
	auth.HandleFunc("/verify-email", s.verifyEmail).Methods(http.MethodGet)
	auth.HandleFunc("/resend-verification", s.resendVerification).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.requireAny(s.logout)).Methods(http.MethodPost)

	for _, scope := range []string{"admin", "staff", "customer"} {
		r.HandleFunc("/api/"+scope+"/dashboard", s.requireRole(scope)(s.dashboard(scope))).Methods(http.MethodGet)
		r.HandleFunc("/api/"+scope+"/{collection}/{id}", s.requireRole(scope)(s.entity(scope))).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/dev/events", s.requireRole("dev")(s.publishEvent)).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.websocket).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, failure{Message: "Not found"})
	})
	return r
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish applies an optional entity change and broadcasts ev to realtime clients
func (s *Server) Publish(ev models.Event) int {
	n := s.hub.Broadcast(ev)
	s.metrics.EventsPublished.WithLabelValues(ev.Name).Inc()
	s.metrics.EventDeliveries.Add(float64(n))
	return n
}

// Upsert changes an entity without broadcasting
func (s *Server) Upsert(collection, id string, fields map[string]any) error {
	_, err := s.data.Upsert(collection, id, fields)
	return err
}

// Clients returns the number of connected realtime clients
func (s *Server) Clients() int {
	return s.hub.Count()
}

// Close disconnects realtime clients
func (s *Server) Close() {
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Dev backend listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("dev backend: %w", err)
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dev backend shutdown: %w", err)
	}
	slog.Info("Dev backend stopped")
	return nil
}

// failure is the error body the console client understands
type failure struct {
	Message           string            `json:"message"`
	Errors            map[string]string `json:"errors,omitempty"`
	RetryAfterSeconds int               `json:"retryAfterSeconds,omitempty"`
	RequireCaptcha    bool              `json:"requireCaptcha,omitempty"`
}

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func writeFailure(w http.ResponseWriter, status int, f failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(f)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, http.StatusBadRequest, failure{Message: "Invalid request body"})
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"status": "ok", "realtimeClients": s.hub.Count()})
}

// requireAny accepts any authenticated role
func (s *Server) requireAny(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, failure{Message: "Session expired. Please sign in again."})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	}
}

func (s *Server) sessionPayload(user *User) (map[string]any, error) {
	token, expiresIn, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"token":     token,
		"tokenType": "Bearer",
		"expiresIn": expiresIn,
		"user":      user.Public(),
	}, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req authclient.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	key := "login:" + strings.ToLower(strings.TrimSpace(req.Identifier))

	allowed, retryAfter := s.limiter.Allow(key)
	if !allowed {
		secs := int(math.Ceil(retryAfter.Seconds()))
		slog.Warn("Login rate limit exceeded", "key", key, "retry_after", secs)
		s.metrics.LoginAttempts.WithLabelValues(outcomeRateLimited).Inc()
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
		writeFailure(w, http.StatusTooManyRequests, failure{
			Message:           "Too many login attempts. Try again later.",
			RetryAfterSeconds: secs,
		})
		return
	}

	if s.failures.NeedsCaptcha(key) && strings.TrimSpace(req.CaptchaToken) == "" {
		s.metrics.LoginAttempts.WithLabelValues(outcomeCaptchaRequired).Inc()
		writeFailure(w, http.StatusForbidden, failure{Message: "Please complete the captcha to continue", RequireCaptcha: true})
		return
	}

	user, ok := s.users.Authenticate(strings.TrimSpace(req.Identifier), req.Password)
	if !ok {
		s.failures.Fail(key)
		s.metrics.LoginAttempts.WithLabelValues(outcomeInvalidCredentials).Inc()
		writeFailure(w, http.StatusUnauthorized, failure{Message: "Invalid username or password"})
		return
	}
	s.failures.Reset(key)

	payload, err := s.sessionPayload(user)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		writeFailure(w, http.StatusInternalServerError, failure{Message: "Could not sign in right now"})
		return
	}
	s.metrics.LoginAttempts.WithLabelValues(outcomeSuccess).Inc()
	slog.Info("User signed in", "username", user.Username, "role", user.Role)
	writeData(w, http.StatusOK, payload)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req authclient.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := authclient.ValidateSignup(req); err != nil {
		writeValidation(w, err)
		return
	}

	user, err := s.users.Create(req.Username, req.Email, req.Password, req.FullName, models.RoleCustomer, false)
	if err != nil {
		writeValidation(w, err)
		return
	}
	token := s.verifications.issue(user.ID)
	slog.Info("Verification token issued", "username", user.Username, "token", token)

	payload, err := s.sessionPayload(user)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, failure{Message: "Could not create account right now"})
		return
	}
	writeData(w, http.StatusCreated, payload)
}

func writeValidation(w http.ResponseWriter, err error) {
	e, ok := models.AsError(err)
	if !ok || len(e.Fields) == 0 {
		slog.Error("Signup failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, failure{Message: "Could not create account right now"})
		return
	}
	writeFailure(w, http.StatusUnprocessableEntity, failure{Message: e.Message, Errors: e.Fields})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if !decode(w, r, &req) {
		return
	}
	user, ok := s.users.Find(strings.TrimSpace(req.Identifier))
	if !ok {
		// unknown accounts are reported honestly; the client hides the difference
		writeFailure(w, http.StatusNotFound, failure{Message: "No account with that username or email"})
		return
	}
	token := s.resets.issue(user.ID)
	slog.Info("Password reset token issued", "username", user.Username, "token", token)
	writeData(w, http.StatusOK, map[string]string{"message": "Reset link sent."})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if msg := authclient.PasswordPolicy(req.Password); msg != "" {
		writeFailure(w, http.StatusUnprocessableEntity, failure{Message: "Password does not meet policy", Errors: map[string]string{"password": msg}})
		return
	}
	userID, err := s.resets.redeem(req.Token)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, failure{Message: "Reset link is invalid or has expired"})
		return
	}
	if err := s.users.SetPassword(userID, req.Password); err != nil {
		writeFailure(w, http.StatusBadRequest, failure{Message: "Reset link is invalid or has expired"})
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "Password updated."})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, err := s.verifications.redeem(r.URL.Query().Get("token"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, failure{Message: "Verification link is invalid or has expired"})
		return
	}
	s.users.MarkVerified(userID)
	writeData(w, http.StatusOK, map[string]string{"message": "Email verified."})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if !decode(w, r, &req) {
		return
	}
	if user, ok := s.users.Find(strings.TrimSpace(req.Identifier)); ok && !user.Verified {
		token := s.verifications.issue(user.ID)
		slog.Info("Verification token issued", "username", user.Username, "token", token)
	}
	writeData(w, http.StatusOK, map[string]string{"message": "Verification email sent."})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	s.issuer.Revoke(p.claims)
	s.hub.Disconnect(p.claims.ID)
	slog.Info("User signed out", "username", p.user.Username)
	writeData(w, http.StatusOK, map[string]string{"message": "Signed out."})
}

func (s *Server) dashboard(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, s.data.Dashboard(scope, principalFrom(r).user))
	}
}

func (s *Server) entity(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		row, ok := s.data.Get(vars["collection"], vars["id"])
		if !ok || !Visible(scope, vars["collection"], row, principalFrom(r).user) {
			writeFailure(w, http.StatusNotFound, failure{Message: "Not found"})
			return
		}
		writeData(w, http.StatusOK, row)
	}
}

// devEvent publishes a realtime event, optionally changing an entity first
type devEvent struct {
	Event      string         `json:"event"`
	Data       map[string]any `json:"data"`
	Collection string         `json:"collection,omitempty"`
	ID         string         `json:"id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

func (s *Server) publishEvent(w http.ResponseWriter, r *http.Request) {
	var req devEvent
	if !decode(w, r, &req) {
		return
	}
	if req.Event == "" {
		writeFailure(w, http.StatusUnprocessableEntity, failure{Message: "event is required", Errors: map[string]string{"event": "is required"}})
		return
	}
	if req.Collection != "" {
		if _, err := s.data.Upsert(req.Collection, req.ID, req.Fields); err != nil {
			writeFailure(w, http.StatusUnprocessableEntity, failure{Message: err.Error()})
			return
		}
	}

	payload, err := json.Marshal(req.Data)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, failure{Message: "Invalid event data"})
		return
	}
	n := s.Publish(models.Event{Name: req.Event, Data: payload})
	writeData(w, http.StatusAccepted, map[string]int{"delivered": n})
}

// websocket authenticates the token query parameter before upgrading
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	p, err := s.authenticateToken(r.URL.Query().Get("token"))
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, failure{Message: "Invalid realtime token"})
		return
	}
	s.hub.Serve(w, r, p.claims)
}
