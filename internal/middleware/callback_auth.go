package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// callbackTokenExpiry bounds how long an issued callback token is honored.
const callbackTokenExpiry = 48 * time.Hour

// CallbackClaims are the claims carried by an oversight callback token.
// Subject is the external service's own identifier for the reviewer.
type CallbackClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// GenerateCallbackToken issues a signed token for the oversight service.
// Used by provisioning tooling and tests; the service presents it on every
// resolution callback.
func GenerateCallbackToken(secret, service string) (string, error) {
	claims := &CallbackClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(callbackTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "tradewarden-api",
			Subject:   service,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// CallbackAuth returns a Gin middleware that authenticates the oversight
// resolution callback with a bearer JWT signed with the shared secret.
func CallbackAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Authorization header is required"}})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Invalid authorization header format"}})
			return
		}

		claims := &CallbackClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Invalid or expired token"}})
			return
		}

		c.Set("callbackService", claims.Service)
		c.Next()
	}
}
