package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"michibiblio-backend/internal/platform/apperr"
)

const ctxIdentityKey = "identity"

func abort(c *gin.Context, code apperr.Code, msg string) {
	status := http.StatusUnauthorized
	if code == apperr.CodeForbidden {
		status = http.StatusForbidden
	}
	c.AbortWithStatusJSON(status, apperr.Body(code, msg))
}

// RequireAuth: Authorization: Bearer <token> を検証して context に Identity を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, apperr.CodeUnauthenticated, "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, apperr.CodeUnauthenticated, "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, apperr.CodeUnauthenticated, "empty token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃とか回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			abort(c, apperr.CodeUnauthenticated, "invalid token")
			return
		}

		if claims.Subject == "" {
			abort(c, apperr.CodeUnauthenticated, "missing sub")
			return
		}
		role := Role(claims.Role)
		if !role.Valid() {
			abort(c, apperr.CodeForbidden, "invalid role")
			return
		}

		c.Set(ctxIdentityKey, Identity{Subject: claims.Subject, Role: role})
		c.Next()
	}
}

// Require: Policy が action を許可しない場合 403
func Require(p Policy, action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abort(c, apperr.CodeUnauthenticated, "missing identity")
			return
		}
		if !p.Allow(id, action) {
			abort(c, apperr.CodeForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
