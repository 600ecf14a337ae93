package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// serviceSubject identifies tokens minted for the internal worker trigger.
const serviceSubject = "worker-dispatch"

// TokenManager issues and validates the short-lived JWTs that authorize the
// internal worker-trigger endpoint.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// ServiceClaims describes the trigger token payload.
type ServiceClaims struct {
	WaMessageID string `json:"wa_message_id"`
	jwt.RegisteredClaims
}

// GenerateServiceToken signs a token scoped to a single provider message id.
func (tm *TokenManager) GenerateServiceToken(waMessageID string) (string, error) {
	now := time.Now()
	claims := &ServiceClaims{
		WaMessageID: waMessageID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseServiceToken validates and returns claims.
func (tm *TokenManager) ParseServiceToken(tokenStr string) (*ServiceClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*ServiceClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject != serviceSubject {
		return nil, errors.New("unexpected token subject")
	}
	return claims, nil
}
