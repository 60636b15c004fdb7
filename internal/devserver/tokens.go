// ABOUTME: HS256 access tokens and one-time email tokens for the dev backend
// ABOUTME: Logout revokes a token by its jti until it would have expired anyway

package devserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access token claims
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates access tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewIssuer creates an issuer signing with secret
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}
}

// Issue returns a signed token for user and its lifetime in seconds
func (i *Issuer) Issue(user *User) (string, int, error) {
	now := i.now()
	claims := Claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, int(i.ttl.Seconds()), nil
}

// Parse validates a token's signature, expiry and revocation
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, models.WrapError(models.ErrUnauthorized, "invalid token", err)
	}

	i.mu.Lock()
	_, revoked := i.revoked[claims.ID]
	i.mu.Unlock()
	if revoked {
		return nil, models.NewError(models.ErrUnauthorized, "token revoked")
	}
	return claims, nil
}

// Revoke invalidates the token with claims. Expired revocations are swept on the way.
func (i *Issuer) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	now := i.now()
	i.mu.Lock()
	defer i.mu.Unlock()
	for jti, exp := range i.revoked {
		if now.After(exp) {
			delete(i.revoked, jti)
		}
	}
	exp := now.Add(i.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	i.revoked[claims.ID] = exp
}

var errTokenUnknown = errors.New("token is invalid or has expired")

// oneTimeTokens holds password reset and email verification tokens
type oneTimeTokens struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]oneTimeToken
}

type oneTimeToken struct {
	userID    string
	expiresAt time.Time
}

func newOneTimeTokens(ttl time.Duration) *oneTimeTokens {
	return &oneTimeTokens{ttl: ttl, tokens: map[string]oneTimeToken{}}
}

func (o *oneTimeTokens) issue(userID string) string {
	token := uuid.NewString()
	o.mu.Lock()
	o.tokens[token] = oneTimeToken{userID: userID, expiresAt: time.Now().Add(o.ttl)}
	o.mu.Unlock()
	return token
}

// redeem consumes token and returns its user id
func (o *oneTimeTokens) redeem(token string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tokens[token]
	if !ok {
		return "", errTokenUnknown
	}
	delete(o.tokens, token)
	if time.Now().After(t.expiresAt) {
		return "", errTokenUnknown
	}
	return t.userID, nil
}
