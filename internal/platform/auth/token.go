package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken: HS256 で署名したトークンを発行する（開発用CLIとテストで使用）
func IssueToken(secret []byte, issuer string, id Identity, ttl time.Duration, now time.Time) (string, error) {
	if id.Subject == "" {
		return "", errors.New("subject is required")
	}
	if !id.Role.Valid() {
		return "", errors.New("role must be operator or supervisor")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := Claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
