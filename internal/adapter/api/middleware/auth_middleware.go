package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TokenVerifier turns a bearer token into a user id. Production wires the
// Firebase auth client; development mode substitutes a pass-through
// verifier so the server runs without credentials.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Authenticate pulls the token from the Authorization header, or from the
// token query parameter for WebSocket upgrades, and stashes the resolved
// uid on the request context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken := ""

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
			}
			idToken = parts[1]
		} else {
			idToken = c.QueryParam("token")
		}

		if idToken == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization is required")
		}

		uid, err := m.verifier.VerifyToken(c.Request().Context(), idToken)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set("uid", uid)
		return next(c)
	}
}

// DevTokenVerifier treats the token itself as the uid. Development only;
// never wire this in production.
type DevTokenVerifier struct{}

func (DevTokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	return token, nil
}
