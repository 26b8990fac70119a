package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIdKey = "userId"

var errInvalidSubject = errors.New("token carries no user id")

// Identity resolves the bearer token to a user id and stores it on the
// context. Tokens are HS256 and carry the id in "sub" or "user_id".
func Identity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("authorization header required", nil, http.StatusUnauthorized))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("invalid authorization header format", nil, http.StatusUnauthorized))
			return
		}

		userId, err := ParseUserId(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("invalid or expired access token", nil, http.StatusUnauthorized))
			return
		}

		c.Set(userIdKey, userId)
		c.Next()
	}
}

func ParseUserId(secret, tokenString string) (int, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	for _, name := range []string{"sub", "user_id"} {
		raw, ok := claims[name]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if v > 0 && v == float64(int(v)) {
				return int(v), nil
			}
		case string:
			if id, err := strconv.Atoi(v); err == nil && id > 0 {
				return id, nil
			}
		}
		return 0, fmt.Errorf("%w: bad %s claim", errInvalidSubject, name)
	}
	return 0, errInvalidSubject
}

// UserId returns the id set by Identity.
func UserId(c *gin.Context) (int, bool) {
	v, ok := c.Get(userIdKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

// InternalKey guards the service-to-service routes.
func InternalKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Internal-Key")
		if expected == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("Invalid or missing internal key", nil, http.StatusUnauthorized))
			return
		}
		c.Next()
	}
}
