// ABOUTME: Stateless wrapper over the backend auth endpoints
// ABOUTME: Produces normalized sessions or typed failures; never touches storage

package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/transport"
	"github.com/golang-jwt/jwt/v5"
)

// ResetAckMessage is returned for every accepted reset request, whether or not the account exists
const ResetAckMessage = "If an account matches, a password reset link has been sent."

// Client performs auth exchanges against the REST backend
type Client struct {
	api                *transport.Client
	defaultDisplayName string
	now                func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithDefaultDisplayName sets the name used when the server record has neither name nor username
func WithDefaultDisplayName(name string) Option {
	return func(c *Client) { c.defaultDisplayName = name }
}

// WithClock overrides time.Now for expiry computation
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates an auth client on top of api
func New(api *transport.Client, opts ...Option) *Client {
	c := &Client{
		api:                api,
		defaultDisplayName: "Guest",
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginRequest is the login form payload
type LoginRequest struct {
	Identifier   string `json:"identifier"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken,omitempty"`
}

// SignupRequest is the registration form payload
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Ack acknowledges an operation that yields no data
type Ack struct {
	Message string `json:"message"`
}

type authPayload struct {
	Token       string          `json:"token"`
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresIn   int             `json:"expiresIn"`
	User        json.RawMessage `json:"user"`
}

// Login exchanges credentials for a session
func (c *Client) Login(ctx context.Context, req LoginRequest) (*models.Session, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	fields := map[string]string{}
	if req.Identifier == "" {
		fields["identifier"] = "is required"
	}
	if req.Password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &models.Error{Kind: models.ErrValidationFailed, Message: "login form is incomplete", Fields: fields}
	}

	var payload authPayload
	err := c.api.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/login",
		Body:   req,
		Reject: models.ErrInvalidCredentials,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c.newSession(payload)
}

// Signup registers a new account. The password policy runs first and failing it makes no request.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*models.Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)

	if err := ValidateSignup(req); err != nil {
		return nil, err
	}

	var payload authPayload
	err := c.api.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/signup",
		Body:   req,
		Reject: models.ErrValidationFailed,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return c.newSession(payload)
}

// RequestPasswordReset asks for a reset link. Known and unknown identifiers get the same Ack.
func (c *Client) RequestPasswordReset(ctx context.Context, identifier, captchaToken string) (Ack, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Ack{}, &models.Error{
			Kind:    models.ErrValidationFailed,
			Message: "identifier is required",
			Fields:  map[string]string{"identifier": "is required"},
		}
	}

	err := c.api.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/forgot-password",
		Body: map[string]string{
			"identifier":   identifier,
			"captchaToken": captchaToken,
		},
	}, nil)
	if err != nil && !isNotFound(err) {
		return Ack{}, fmt.Errorf("forgot password: %w", err)
	}
	return Ack{Message: ResetAckMessage}, nil
}

// ResetPassword sets a new password using the emailed reset token
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (Ack, error) {
	if strings.TrimSpace(token) == "" {
		return Ack{}, models.NewError(models.ErrInvalidToken, "reset token is missing")
	}
	if msg := PasswordPolicy(newPassword); msg != "" {
		return Ack{}, &models.Error{
			Kind:    models.ErrValidationFailed,
			Message: "password does not meet policy",
			Fields:  map[string]string{"password": msg},
		}
	}

	return c.ack(ctx, "reset password", transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/reset-password",
		Body:   map[string]string{"token": token, "password": newPassword},
		Reject: models.ErrInvalidToken,
	}, "Password updated.")
}

// VerifyEmail confirms an address with the emailed verification token
func (c *Client) VerifyEmail(ctx context.Context, token string) (Ack, error) {
	if strings.TrimSpace(token) == "" {
		return Ack{}, models.NewError(models.ErrInvalidToken, "verification token is missing")
	}
	return c.ack(ctx, "verify email", transport.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/verify-email",
		Query:  url.Values{"token": {token}},
		Reject: models.ErrInvalidToken,
	}, "Email verified.")
}

// ResendVerification requests a fresh verification email
func (c *Client) ResendVerification(ctx context.Context, identifier string) (Ack, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Ack{}, &models.Error{
			Kind:    models.ErrValidationFailed,
			Message: "identifier is required",
			Fields:  map[string]string{"identifier": "is required"},
		}
	}
	return c.ack(ctx, "resend verification", transport.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/resend-verification",
		Body:   map[string]string{"identifier": identifier},
		Reject: models.ErrInvalidToken,
	}, "Verification email sent.")
}

// Logout tells the backend to revoke the token. Callers treat failure as non-fatal.
func (c *Client) Logout(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.Token == "" {
		return nil
	}
	err := c.api.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    "/api/auth/logout",
		Session: sess,
	}, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (c *Client) ack(ctx context.Context, op string, req transport.Request, fallback string) (Ack, error) {
	var ack Ack
	if err := c.api.Do(ctx, req, &ack); err != nil {
		return Ack{}, fmt.Errorf("%s: %w", op, err)
	}
	if ack.Message == "" {
		ack.Message = fallback
	}
	return ack, nil
}

func isNotFound(err error) bool {
	e, ok := models.AsError(err)
	return ok && e.Status == http.StatusNotFound
}

func (c *Client) newSession(p authPayload) (*models.Session, error) {
	token := p.Token
	if token == "" {
		token = p.AccessToken
	}
	if token == "" {
		return nil, models.NewError(models.ErrServiceUnavailable, "backend response did not include a token")
	}

	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = models.DefaultTokenType
	}

	now := c.now()
	sess := &models.Session{
		Token:     token,
		TokenType: tokenType,
		ExpiresIn: p.ExpiresIn,
		IssuedAt:  now,
	}

	claims := unverifiedClaims(token)
	switch {
	case p.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(p.ExpiresIn) * time.Second)
	case claims != nil:
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			sess.ExpiresAt = exp.Time
			sess.ExpiresIn = int(exp.Sub(now).Seconds())
		}
	}

	user, err := c.normalizeUser(p.User, claims)
	if err != nil {
		return nil, err
	}
	sess.User = user
	return sess, nil
}

// unverifiedClaims reads JWT claims without checking the signature; the backend
// verifies tokens, the client only needs expiry and identity hints.
func unverifiedClaims(token string) jwt.MapClaims {
	if strings.Count(token, ".") != 2 {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// normalizeUser maps the server's user record (or token claims when the record is absent)
// onto UserIdentity
func (c *Client) normalizeUser(raw json.RawMessage, claims jwt.MapClaims) (models.UserIdentity, error) {
	var fields map[string]any
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return models.UserIdentity{}, models.WrapError(models.ErrServiceUnavailable, "invalid user record from backend", err)
		}
	} else if claims != nil {
		fields = map[string]any(claims)
		raw = nil
	}

	u := models.UserIdentity{Raw: raw}
	u.ID = firstField(fields, "id", "_id", "userId", "sub")
	u.Username = firstField(fields, "username", "userName")
	u.Email = firstField(fields, "email")
	u.Role = models.ParseRole(firstField(fields, "role"))

	fallback := u.Username
	if fallback == "" {
		fallback = c.defaultDisplayName
	}
	u.DisplayName = models.NormalizeDisplayName(firstField(fields, "fullName", "full_name", "name", "displayName"), fallback)
	return u, nil
}

func firstField(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := models.StringField(fields, k); ok {
			return v
		}
	}
	return ""
}
