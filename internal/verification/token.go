// Package verification integrates the external age verification provider:
// kicking off a check and accepting its signed callback.
package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"compass/pkg/sentinel"
)

// Claims carries the provider's verdict back to us.
type Claims struct {
	Handle string `json:"handle"`
	Status string `json:"status"`
	jwt.RegisteredClaims
}

// TokenService signs and validates callback tokens. The provider holds the
// shared key and signs its verdicts with it.
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// Generate issues a signed verdict token. Used by tests and the provider
// simulator; in production the provider signs.
func (s *TokenService) Generate(handle, status string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Handle: handle,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("callback token: %w", sentinel.ErrExpired)
		}
		return nil, fmt.Errorf("callback token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("callback token: invalid claims")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("callback token: unexpected issuer %q", claims.Issuer)
	}
	return claims, nil
}
