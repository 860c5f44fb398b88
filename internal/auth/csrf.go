package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// ErrCSRFMismatch is returned when the double-submit pair does not match.
var ErrCSRFMismatch = errors.New("csrf token mismatch")

// GenerateCSRFToken returns a random high-entropy token for the double-submit
// cookie. The value is URL-safe so it survives cookie and header transport.
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateCSRF compares the csrf cookie value with the echoed request header.
// Missing either side, or any difference, fails.
func ValidateCSRF(cookieToken, headerToken string) error {
	if cookieToken == "" || headerToken == "" {
		return ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}
