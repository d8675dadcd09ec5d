package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var ErrInvalidToken = errors.New("invalid connection token")

type connClaims struct {
	jwt.RegisteredClaims
}

// ConnTokens issues and resolves the tokens a browser uses to reclaim its
// connection identity after a reload.
type ConnTokens struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewConnTokens(secret string, ttl time.Duration, clock clockwork.Clock) *ConnTokens {
	return &ConnTokens{secret: []byte(secret), ttl: ttl, clock: clock}
}

func (t *ConnTokens) Issue(connectionID string) (string, error) {
	now := t.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, connClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   connectionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	return token.SignedString(t.secret)
}

// Resolve returns the connection id carried by token.
func (t *ConnTokens) Resolve(tokenString string) (string, error) {
	claims := &connClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
