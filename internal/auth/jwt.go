// Package auth issues and verifies the player session tokens the
// gateway admits connections with. The gateway only depends on the
// Verifier interface; everything else here is plumbing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken  = errors.New("token expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidSigAlg = errors.New("unexpected token signing algorithm")
)

// Identity is the authenticated player a token resolves to.
type Identity struct {
	PlayerID   string
	PlayerName string
}

// Verifier resolves an opaque bearer token to a player identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type playerClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 player tokens.
type JWTManager struct {
	secretKey []byte
	maxAge    time.Duration
}

// NewJWTManager creates a manager with the given signing secret and
// token lifetime.
func NewJWTManager(secretKey string, maxAge time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
	}
}

// Generate issues a token for the player, valid for the configured
// lifetime from now.
func (m *JWTManager) Generate(playerID, playerName string, now time.Time) (string, error) {
	claims := playerClaims{
		Name: playerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the player identity
// embedded in its claims.
func (m *JWTManager) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &playerClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigAlg
		}
		return m.secretKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSigAlg):
			return Identity{}, ErrInvalidSigAlg
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpiredToken
		default:
			return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	}

	claims, ok := token.Claims.(*playerClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{PlayerID: claims.Subject, PlayerName: claims.Name}, nil
}
