package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionLifetime is how long a session cookie stays valid. The app's
// session model is trust-on-read (a restored session is believed until
// logout), so the token lifetime is generous rather than the usual
// short-lived access token.
const sessionLifetime = 7 * 24 * time.Hour

const issuer = "threadlite"

// TokenService signs and verifies the JWT carried in the session cookie.
//
// The token is stateless: the subject claim holds the account's email, and
// the HMAC signature means nobody can forge or alter it without the
// secret. No session table, no DB lookup to validate.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. The secret should be at least
// 32 random bytes in production (JWT_SECRET=$(openssl rand -hex 32)).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; we only use the standard fields
// (Subject, IssuedAt, ExpiresAt, Issuer).
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a session token whose subject is the given account email.
func (s *TokenService) Generate(subject string) (string, error) {
	return s.GenerateWithDuration(subject, sessionLifetime)
}

// GenerateWithDuration signs a token with a custom lifetime. Used by tests
// to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(subject string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string and returns its subject.
//
// jwt.WithValidMethods pins the algorithm to HS256 — without it, a token
// claiming alg "none" could slip through (the classic algorithm-confusion
// attack). Expiry and issuer are checked by the library as well.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
