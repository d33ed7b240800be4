package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	adminRole   = "admin"
	tokenIssuer = "santabot-admin"
)

var errNotAdmin = errors.New("token does not carry the admin role")

// GenerateJWT mints an admin token valid for ttl.
func GenerateJWT(secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	claims := jwt.MapClaims{
		"role": adminRole,
		"jti":  uuid.NewString(),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
		"iss":  tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// validateAdmin checks the signature, expiry, issuer and role of tokenString.
func validateAdmin(secret []byte, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["role"] != adminRole {
		return errNotAdmin
	}
	return nil
}

// RequireAdmin rejects requests without a valid admin bearer token. With
// no secret configured every request is rejected.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(h.Secret) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin API disabled"})
			return
		}
		tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		if err := validateAdmin(h.Secret, tokenString); err != nil {
			slog.Warn("admin token rejected", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Next()
	}
}
