// Package auth implements session token issuance/verification and password
// hashing for the server.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/parleyhq/parley/internal/common"
)

// Claims carries the member identity inside a session token. MemberID is the
// lowercased registration email; DisplayName and Role are informational.
type Claims struct {
	jwt.RegisteredClaims
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

// GenerateToken issues an HS256-signed session token for the given member.
func GenerateToken(memberID, displayName, role string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		MemberID:    memberID,
		DisplayName: displayName,
		Role:        role,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies signature and expiry and returns the embedded claims.
// Expired tokens return common.ErrTokenExpired, any other failure
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
