package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenLifetime applies when the configured lifetime is not positive.
const DefaultTokenLifetime = 12 * time.Hour

// Claims is the signed payload of a bearer token.
type Claims struct {
	AccountID uint `json:"id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies stateless HS256 bearer tokens.
// There is no revocation list: a token stays valid until it expires.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService builds a token service. An empty secret is accepted so
// the process can start; Issue and Verify then fail with ErrConfiguration.
func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for accountID and returns it with its expiry.
func (s *TokenService) Issue(accountID uint) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrConfiguration
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.lifetime)
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature, algorithm and expiry and returns the account id.
func (s *TokenService) Verify(token string) (uint, error) {
	if len(s.secret) == 0 {
		return 0, ErrConfiguration
	}
	if token == "" {
		return 0, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrTokenExpired
	default:
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.AccountID == 0 {
		return 0, ErrTokenInvalid
	}
	return claims.AccountID, nil
}
