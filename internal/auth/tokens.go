package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failure modes. All three must be treated as an authentication
// failure at the HTTP boundary; the split exists for logging and tests.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
)

// TokenIssuer creates and verifies signed access and refresh tokens. Tokens
// carry only the subject identifier (the user's email) and expiry.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer returns an issuer signing with secret. accessTTL and
// refreshTTL are the default lifetimes for the two token kinds.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccess creates a short-lived access token for the given subject.
func (t *TokenIssuer) IssueAccess(subject string) (string, error) {
	return t.issue(subject, t.accessTTL)
}

// IssueAccessWithTTL creates an access token with an explicit lifetime,
// overriding the configured default.
func (t *TokenIssuer) IssueAccessWithTTL(subject string, ttl time.Duration) (string, error) {
	return t.issue(subject, ttl)
}

// IssueRefresh creates a long-lived refresh token for the given subject.
func (t *TokenIssuer) IssueRefresh(subject string) (string, error) {
	return t.issue(subject, t.refreshTTL)
}

func (t *TokenIssuer) issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates the signature and expiry of tokenString and returns its
// subject. Failures map to ErrTokenExpired, ErrTokenMalformed, or
// ErrTokenInvalid.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrTokenMalformed
		default:
			return "", ErrTokenInvalid
		}
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
