package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingSecret = errors.New("SERVICE_JWT_SECRET is not set")

const serviceTokenTTL = 5 * time.Minute

func serviceTokenSecret() ([]byte, error) {
	secret := os.Getenv("SERVICE_JWT_SECRET")
	if secret == "" {
		return nil, errMissingSecret
	}
	return []byte(secret), nil
}

type ServiceClaims struct {
	jwt.RegisteredClaims
}

// GenerateServiceToken issues the short-lived bearer token attached to
// outbound calls to the hosted classification and insights functions.
func GenerateServiceToken(audience string) (string, error) {
	secret, err := serviceTokenSecret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ledgerline-backend",
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseServiceToken(tokenString string) (*ServiceClaims, error) {
	secret, err := serviceTokenSecret()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
