// ABOUTME: Session and identity models shared by the auth, session and realtime layers
// ABOUTME: Defines roles, persistence tiers and display-name normalization

package models

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Role is the server-reported role of an authenticated user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
	RoleShipper  Role = "shipper"
	RoleGuest    Role = "guest"
)

// ParseRole converts a server role string to a Role.
// Unknown or empty values resolve to RoleGuest.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCustomer:
		return RoleCustomer
	case RoleStaff:
		return RoleStaff
	case RoleAdmin:
		return RoleAdmin
	case RoleShipper:
		return RoleShipper
	default:
		return RoleGuest
	}
}

// Persistence selects which credential tier a session is written to
type Persistence string

const (
	// PersistenceEphemeral keeps the session only for the current login context
	PersistenceEphemeral Persistence = "ephemeral"
	// PersistenceDurable survives process restarts ("remember me")
	PersistenceDurable Persistence = "durable"
)

// DefaultTokenType is used when the server omits token_type
const DefaultTokenType = "Bearer"

// UserIdentity is the normalized view of the server's user record.
// Treat it as immutable; a re-login replaces it wholesale.
type UserIdentity struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Role        Role            `json:"role"`
	DisplayName string          `json:"display_name"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Session is an authenticated identity plus the token that proves it
type Session struct {
	Token       string       `json:"token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in,omitempty"`
	ExpiresAt   time.Time    `json:"expires_at,omitempty"`
	IssuedAt    time.Time    `json:"issued_at"`
	User        UserIdentity `json:"user"`
	Persistence Persistence  `json:"persistence"`
}

// Expired reports whether the session token has passed its expiry.
// A zero ExpiresAt means the server gave no expiry and the token never expires locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// AuthorizationHeader returns the value for the Authorization header
func (s *Session) AuthorizationHeader() string {
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	return tokenType + " " + s.Token
}

// NormalizeDisplayName trims the name, collapses whitespace and title-cases each word.
// Returns fallback unchanged when name has no non-space characters.
func NormalizeDisplayName(name, fallback string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return fallback
	}
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
