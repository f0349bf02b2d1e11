// Package auth provides password hashing and JWT issue/verify for the
// API. Tokens are HMAC-signed with a shared secret; the subject claim
// carries the user's UUID.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskpilot/taskpilot/internal/models"
)

// DefaultTokenDuration is how long issued tokens remain valid.
const DefaultTokenDuration = 24 * time.Hour

// ErrInvalidToken is returned for tokens that fail signature or
// expiry validation.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and validates the API's access tokens.
type JWTManager struct {
	secretKey []byte
	duration  time.Duration
}

// NewJWTManager returns a configured manager. A zero duration falls
// back to DefaultTokenDuration.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return &JWTManager{
		secretKey: []byte(secretKey),
		duration:  duration,
	}
}

// GenerateToken issues a signed token for a user. Returns the token
// string and its expiry.
func (m *JWTManager) GenerateToken(userID uuid.UUID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)

	claims := &models.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token string. Only HMAC-signed
// tokens are accepted.
func (m *JWTManager) VerifyToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID extracts the user UUID from verified claims.
func UserID(claims *models.Claims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return id, nil
}
