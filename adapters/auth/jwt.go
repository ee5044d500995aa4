// Package auth provides stateless authentication using JWT.
// No shared state between instances; suitable for horizontal scaling.
package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/planora/planora/domain/principal"
)

// Claims represents the JWT claims for an authenticated principal.
type Claims struct {
	PrincipalID string `json:"pid"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService provides stateless JWT token operations.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewTokenService creates a new JWT token service.
// If secret is empty, a random 32-byte secret is generated.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}

	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	return &TokenService{
		secret:     secretBytes,
		issuer:     "planora",
		expiration: expiration,
	}
}

// GenerateToken creates a new JWT token for the given principal.
func (s *TokenService) GenerateToken(p principal.Principal) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		PrincipalID: p.ID,
		Name:        p.Name,
		Role:        string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if _, err := principal.ParseRole(claims.Role); err != nil {
		return nil, err
	}

	return claims, nil
}
