// ABOUTME: Session lifecycle: establish, expose, and invalidate the authenticated identity
// ABOUTME: The only writer of the credential store; owns the realtime channel lifecycle

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/authclient"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/credstore"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
)

// ErrInFlight rejects a duplicate submission while the same operation is pending
var ErrInFlight = errors.New("operation already in progress")

// Operation names an auth exchange tracked while in flight
type Operation string

const (
	OpLogin              Operation = "login"
	OpSignup             Operation = "signup"
	OpForgotPassword     Operation = "forgot-password"
	OpResetPassword      Operation = "reset-password"
	OpVerifyEmail        Operation = "verify-email"
	OpResendVerification Operation = "resend-verification"
	OpLogout             Operation = "logout"
)

// Authenticator is the subset of the auth client the manager drives
type Authenticator interface {
	Login(ctx context.Context, req authclient.LoginRequest) (*models.Session, error)
	Signup(ctx context.Context, req authclient.SignupRequest) (*models.Session, error)
	RequestPasswordReset(ctx context.Context, identifier, captchaToken string) (authclient.Ack, error)
	ResetPassword(ctx context.Context, token, newPassword string) (authclient.Ack, error)
	VerifyEmail(ctx context.Context, token string) (authclient.Ack, error)
	ResendVerification(ctx context.Context, identifier string) (authclient.Ack, error)
	Logout(ctx context.Context, sess *models.Session) error
}

// Channel is the realtime connection the manager opens per session
type Channel interface {
	Connect(ctx context.Context) error
	Close()
}

// Option configures a Manager
type Option func(*Manager)

// WithChannel attaches the realtime channel opened for each session
func WithChannel(ch Channel) Option {
	return func(m *Manager) { m.channel = ch }
}

// WithClock overrides time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager orchestrates the auth client, credential store and realtime channel
type Manager struct {
	auth    Authenticator
	store   *credstore.Store
	channel Channel
	now     func() time.Time

	mu        sync.Mutex
	pending   map[Operation]bool
	listeners map[uint64]func()
	order     []uint64
	nextID    uint64
}

// New creates a manager over auth and store
func New(auth Authenticator, store *credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		auth:      auth,
		store:     store,
		now:       time.Now,
		pending:   make(map[Operation]bool),
		listeners: make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) begin(op Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[op] {
		return fmt.Errorf("%s: %w", op, ErrInFlight)
	}
	m.pending[op] = true
	return nil
}

func (m *Manager) end(op Operation) {
	m.mu.Lock()
	delete(m.pending, op)
	m.mu.Unlock()
}

// Pending reports whether op is in flight
func (m *Manager) Pending(op Operation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[op]
}

// Establish logs in and stores the session in the tier chosen by persistence.
// Failures are returned untouched and nothing is written.
func (m *Manager) Establish(ctx context.Context, req authclient.LoginRequest, persistence models.Persistence) (*models.Session, error) {
	if err := m.begin(OpLogin); err != nil {
		return nil, err
	}
	defer m.end(OpLogin)

	sess, err := m.auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, sess, persistence)
}

// EstablishSignup registers an account and adopts the returned session
func (m *Manager) EstablishSignup(ctx context.Context, req authclient.SignupRequest, persistence models.Persistence) (*models.Session, error) {
	if err := m.begin(OpSignup); err != nil {
		return nil, err
	}
	defer m.end(OpSignup)

	sess, err := m.auth.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.adopt(ctx, sess, persistence)
}

func (m *Manager) adopt(ctx context.Context, sess *models.Session, persistence models.Persistence) (*models.Session, error) {
	if err := m.store.Save(sess, persistence); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	sess.Persistence = persistence

	slog.Info("Session established",
		"user", sess.User.Username,
		"role", sess.User.Role,
		"persistence", persistence,
	)
	m.connect(ctx)
	return sess, nil
}

// connect (re)opens the channel; realtime failures degrade features, never the session
func (m *Manager) connect(ctx context.Context) {
	if m.channel == nil {
		return
	}
	if err := m.channel.Connect(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Realtime channel not started", "error", err)
	}
}

// Current returns the stored session; expired sessions read as absent. Makes no network call.
func (m *Manager) Current() (*models.Session, bool) {
	sess, ok := m.store.Read()
	if !ok || sess.Expired(m.now()) {
		return nil, false
	}
	return sess, true
}

// Require returns the current session or ErrUnauthorized. An expired session is invalidated.
func (m *Manager) Require() (*models.Session, error) {
	sess, ok := m.store.Read()
	if !ok {
		return nil, models.NewError(models.ErrUnauthorized, "not signed in")
	}
	if sess.Expired(m.now()) {
		m.Invalidate()
		return nil, models.NewError(models.ErrUnauthorized, "session expired, sign in again")
	}
	return sess, nil
}

// Resume opens the channel for a session stored by an earlier process
func (m *Manager) Resume(ctx context.Context) (*models.Session, error) {
	sess, err := m.Require()
	if err != nil {
		return nil, err
	}
	m.connect(ctx)
	return sess, nil
}

// OnInvalidate registers fn to run synchronously on every Invalidate, in registration order.
// The returned func removes it.
func (m *Manager) OnInvalidate(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.order = append(m.order, id)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Invalidate clears the credential, closes the channel and notifies listeners before returning
func (m *Manager) Invalidate() {
	if err := m.store.Clear(); err != nil {
		slog.Error("Failed to clear credentials", "error", err)
	}
	if m.channel != nil {
		m.channel.Close()
	}

	m.mu.Lock()
	fns := make([]func(), 0, len(m.listeners))
	live := m.order[:0]
	for _, id := range m.order {
		if fn, ok := m.listeners[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	m.order = live
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	slog.Info("Session invalidated")
}

// HandleUnauthorized is the hook for authenticated calls that receive a 401
func (m *Manager) HandleUnauthorized(err error) {
	slog.Warn("Authenticated request rejected, invalidating session", "error", err)
	m.Invalidate()
}

// Logout revokes the token server-side when possible and always invalidates locally
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.begin(OpLogout); err != nil {
		return err
	}
	defer m.end(OpLogout)

	if sess, ok := m.store.Read(); ok {
		if err := m.auth.Logout(ctx, sess); err != nil {
			slog.Warn("Server logout failed", "error", err)
		}
	}
	m.Invalidate()
	return nil
}

// RequestPasswordReset forwards to the auth client under the in-flight guard
func (m *Manager) RequestPasswordReset(ctx context.Context, identifier, captchaToken string) (authclient.Ack, error) {
	if err := m.begin(OpForgotPassword); err != nil {
		return authclient.Ack{}, err
	}
	defer m.end(OpForgotPassword)
	return m.auth.RequestPasswordReset(ctx, identifier, captchaToken)
}

// ResetPassword forwards to the auth client under the in-flight guard
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (authclient.Ack, error) {
	if err := m.begin(OpResetPassword); err != nil {
		return authclient.Ack{}, err
	}
	defer m.end(OpResetPassword)
	return m.auth.ResetPassword(ctx, token, newPassword)
}

// VerifyEmail forwards to the auth client under the in-flight guard
func (m *Manager) VerifyEmail(ctx context.Context, token string) (authclient.Ack, error) {
	if err := m.begin(OpVerifyEmail); err != nil {
		return authclient.Ack{}, err
	}
	defer m.end(OpVerifyEmail)
	return m.auth.VerifyEmail(ctx, token)
}

// ResendVerification forwards to the auth client under the in-flight guard
func (m *Manager) ResendVerification(ctx context.Context, identifier string) (authclient.Ack, error) {
	if err := m.begin(OpResendVerification); err != nil {
		return authclient.Ack{}, err
	}
	defer m.end(OpResendVerification)
	return m.auth.ResendVerification(ctx, identifier)
}
