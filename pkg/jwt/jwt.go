package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// Manager verifies bearer tokens minted by the identity service. Tokens are
// never issued here; this service only consumes them.
type Manager struct {
	secret string
}

// NewManager creates a JWT manager sharing the identity service's secret
func NewManager(secret string) *Manager {
	return &Manager{secret: secret}
}

// ValidateAccessToken verifies the signature and expiry of an access token
// and returns its claims. Refresh tokens are rejected; they belong to the
// identity service's renewal endpoint, not this API.
func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Type != "access" {
		return nil, fmt.Errorf("invalid token type: expected access, got %s", claims.Type)
	}

	return claims, nil
}
