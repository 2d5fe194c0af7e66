package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/privara/docsearch/internal/domain"
)

// Issuer signs and verifies HS256 access tokens carrying the user profile
// as claims.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates a token issuer.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Issue creates a signed access token for the user.
func (i *Issuer) Issue(user domain.User) (string, error) {
	now := time.Now()
	c := claims{
		Username:   user.Username,
		Role:       user.Role,
		Department: user.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a token, returning the embedded user.
func (i *Issuer) Verify(tokenString string) (domain.User, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("parse token: %w: %w", err, domain.ErrUnauthorized)
	}
	if !token.Valid {
		return domain.User{}, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}

	return domain.User{
		Sub:        c.Subject,
		Username:   c.Username,
		Role:       c.Role,
		Department: c.Department,
	}, nil
}
