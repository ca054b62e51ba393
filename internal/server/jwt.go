package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const callerIssuer = "respect"

// CallerTokens issues and verifies the HS256 bearer tokens that identify callers of the server.
type CallerTokens struct {
	secret []byte
	now    func() time.Time
}

// NewCallerTokens creates CallerTokens signing with secret.
func NewCallerTokens(secret string) (*CallerTokens, error) {
	if len(secret) < 8 {
		return nil, errors.New("jwt secret must be at least 8 characters")
	}
	return &CallerTokens{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token whose subject is subjectID and which expires after ttl.
func (c *CallerTokens) Issue(subjectID string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		Issuer:    callerIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature, issuer and expiry and returns its subject.
func (c *CallerTokens) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(callerIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("token expired")
		}
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
