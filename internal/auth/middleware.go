package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminKey contextKey = "authAdminSubject"

// GetAdmin retrieves the authenticated admin subject from context.
func GetAdmin(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(adminKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// WithAdmin stores the authenticated admin subject in ctx.
func WithAdmin(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, adminKey, subject)
}

// ParseAdminToken validates an HS256 admin token and returns its claims.
func ParseAdminToken(tokenString, secret, audience string) (*AdminClaims, error) {
	secret = strings.TrimSpace(secret)
	audience = strings.TrimSpace(audience)
	if secret == "" {
		return nil, errors.New("missing JWT secret")
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if audience != "" && !containsAudience(claims.Audience, audience) {
		return nil, errors.New("invalid audience")
	}
	if claims.Subject == "" || claims.Role != RoleAdmin {
		return nil, errors.New("admin role required")
	}
	return claims, nil
}

// JWTMiddleware validates admin bearer tokens issued by Issuer.
func JWTMiddleware(secret, audience string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	audience = strings.TrimSpace(audience)

	return func(c *gin.Context) {
		if secret == "" {
			unauthorized(c, "missing JWT secret")
			return
		}

		tokenString, err := ExtractBearerToken(c.Request.Header.Get("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		claims, err := ParseAdminToken(tokenString, secret, audience)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		c.Request = c.Request.WithContext(WithAdmin(c.Request.Context(), claims.Subject))
		c.Set(string(adminKey), claims.Subject)

		c.Next()
	}
}

// ExtractBearerToken returns the token from an "Authorization: Bearer" value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func containsAudience(claims jwt.ClaimStrings, expected string) bool {
	for _, aud := range claims {
		if aud == expected {
			return true
		}
	}
	return false
}
