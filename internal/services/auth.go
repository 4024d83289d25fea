// Package services contains the core business logic for QueueIT: session
// lifecycle, the vote ledger and the queue state machine.
package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents a user's permission level within a session.
type Role string

const (
	RoleHost   Role = "host"   // Drives playback: finished, skip, lock, end
	RoleMember Role = "member" // Adds songs and votes
)

// Claims represents the JWT payload for authenticated requests.
// The subject is the user id; sid and role scope it to one session.
type Claims struct {
	SessionID string `json:"sid"`
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token's subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// AuthService handles JWT token generation and validation for session authentication.
type AuthService struct {
	secret              []byte
	hostTokenDuration   time.Duration
	memberTokenDuration time.Duration
}

// NewAuthService creates an AuthService with the given signing secret and token durations.
func NewAuthService(secret string, hostDuration, memberDuration time.Duration) *AuthService {
	return &AuthService{
		secret:              []byte(secret),
		hostTokenDuration:   hostDuration,
		memberTokenDuration: memberDuration,
	}
}

// GenerateToken creates a signed JWT for a user in a session.
// Host tokens have a longer expiry than member tokens.
func (s *AuthService) GenerateToken(sessionID, userID, name string, role Role) (string, error) {
	duration := s.memberTokenDuration
	if role == RoleHost {
		duration = s.hostTokenDuration
	}

	claims := Claims{
		SessionID: sessionID,
		Role:      role,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "queueit",
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies the JWT signature and expiry, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.Subject == "" || claims.SessionID == "" {
			return nil, errors.New("token is missing subject or session")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
