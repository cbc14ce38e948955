package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"shorewatch/pkg/apperrors"
)

// ContextUserIDKey is where the authenticated user id lands in the gin
// context once the token checks out.
const ContextUserIDKey = "auth.userID"

// Auth validates the Bearer token and stores the caller's user id. Tokens
// carry the numeric user id in the subject claim.
func Auth(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := userIDFromRequest(c, secret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  string(apperrors.CodeUnauthenticated),
				"error": "authentication required",
			})
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated caller's id set by Auth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func userIDFromRequest(c *gin.Context, secret, issuer string) (int64, error) {
	raw := bearerToken(c)
	if raw == "" {
		return 0, apperrors.Unauthenticated("missing bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return 0, apperrors.Unauthenticated("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, apperrors.Unauthenticated("invalid token claims")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Unauthenticated("invalid token subject")
	}
	return id, nil
}

// bearerToken reads the Authorization header, falling back to the access_token
// query parameter for websocket upgrades where headers are awkward to set.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}
