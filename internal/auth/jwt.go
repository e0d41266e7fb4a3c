// Package auth handles sessions, passwords and GitHub sign-in.
//
// SESSION FLOW:
//  1. The user registers, logs in, or completes the GitHub callback.
//  2. The server issues a signed JWT whose subject is the profile's user id
//     and stores it in an HttpOnly cookie.
//  3. RequireAuth validates the cookie (or an Authorization: Bearer header)
//     on every API request and puts the user id in the request context.
//
// Sessions are stateless: logging out only clears the cookie. A token stays
// valid until it expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "quiet-hours"

	// DefaultSessionTTL is how long a session token is valid.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// ErrTokenExpired is returned by Validate for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService requires a secret of at least 16 characters.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens issued by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Generate issues a session token for userID with the service's TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration issues a token that expires after d. A negative d
// yields an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature, algorithm, issuer and expiry of a token
// and returns its subject.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		// Pinning the method rejects "none" and RSA/HMAC confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
