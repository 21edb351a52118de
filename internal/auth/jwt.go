// Package auth issues and validates registrar session tokens. A session
// carries the registrar id as subject and an optional superuser flag for
// registry-operator tooling.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the authenticated registrar identity carried by a token.
type Session struct {
	RegistrarID string
	Superuser   bool
}

// JWTManager handles JWT session token generation and validation.
type JWTManager struct {
	secret []byte
	issuer string
}

// NewJWTManager creates a new JWT manager.
// secret must be at least 32 characters for HS256 security.
func NewJWTManager(secret string, issuer string) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// sessionClaims extends standard JWT claims with the superuser flag.
type sessionClaims struct {
	jwt.RegisteredClaims
	Superuser bool `json:"superuser,omitempty"`
}

// GenerateToken creates a signed HS256 JWT with the registrar id as subject.
func (m *JWTManager) GenerateToken(registrarID string, superuser bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   registrarID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Superuser: superuser,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a session token.
func (m *JWTManager) ValidateToken(tokenString string) (Session, error) {
	if tokenString == "" {
		return Session{}, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("invalid token claims")
	}
	if claims.Issuer != m.issuer {
		return Session{}, fmt.Errorf("invalid issuer: expected %s, got %s", m.issuer, claims.Issuer)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("missing subject")
	}

	return Session{RegistrarID: claims.Subject, Superuser: claims.Superuser}, nil
}
