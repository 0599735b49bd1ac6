/*
Package auth provides optional bearer-token authentication for the
chat and profile routes. When SESSION_SECRET is unset the service runs
open and callers identify themselves by the user id in the request;
when set, a valid JWT is required and its claims decide the user id.
*/
package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// JwtCustomClaims carries the authenticated user identity.
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(c echo.Context) string {
	if id, ok := c.Get("user_id").(string); ok {
		return id
	}
	return ""
}

// Middleware validates a Bearer token when a session secret is
// configured. Without a secret it is a pass-through.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionSecret := os.Getenv("SESSION_SECRET")
			if sessionSecret == "" {
				// Open mode: no authentication configured.
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing bearer token"})
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
				// Verify signing method
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(sessionSecret), nil
			})
			if err != nil || !token.Valid {
				log.Info().Err(err).Msg("Token validation failed")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			}

			claims, ok := token.Claims.(*JwtCustomClaims)
			if !ok || claims.UserID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
			}

			c.Set("user_id", claims.UserID)
			return next(c)
		}
	}
}
