package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aretw0/synote/pkg/core"
)

const (
	purposeSession = "session"
	purposeReset   = "reset"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// claims is the JWT payload of session and reset tokens.
type claims struct {
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anon,omitempty"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

func issue(secret []byte, u core.User, purpose string, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		Email:     u.Email,
		Anonymous: u.Anonymous,
		Purpose:   purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func parse(secret []byte, raw, purpose string, now time.Time) (core.User, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !token.Valid {
		return core.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Purpose != purpose || c.Subject == "" {
		return core.User{}, ErrInvalidToken
	}
	return core.User{ID: c.Subject, Email: c.Email, Anonymous: c.Anonymous}, nil
}
