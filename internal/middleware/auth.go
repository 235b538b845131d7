package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

const (
	ContextUID   = "uid"
	ContextAdmin = "admin"
	CronHeader   = "X-Cron-Secret"
)

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	verifier tokenVerifier
}

func NewAuthMiddleware(verifier tokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "missing bearer token"))
		}
		tokenStr := strings.TrimPrefix(authz, "Bearer ")
		token, err := m.verifier.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("invalid_token", "token verification failed"))
		}
		c.Set(ContextUID, token.UID)
		isAdmin, _ := token.Claims["admin"].(bool)
		c.Set(ContextAdmin, isAdmin)
		return next(c)
	}
}

// OptionalAuth identifies the caller when a valid bearer token is present and
// lets anonymous requests through.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			return next(c)
		}
		token, err := m.verifier.VerifyIDToken(c.Request().Context(), strings.TrimPrefix(authz, "Bearer "))
		if err == nil {
			c.Set(ContextUID, token.UID)
			isAdmin, _ := token.Claims["admin"].(bool)
			c.Set(ContextAdmin, isAdmin)
		}
		return next(c)
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if isAdmin, _ := c.Get(ContextAdmin).(bool); !isAdmin {
			return c.JSON(http.StatusForbidden, errorBody("forbidden", "admin only"))
		}
		return next(c)
	}
}

// RequireCronSecret guards endpoints called by the scheduler. An empty secret
// disables them.
func RequireCronSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(CronHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "invalid cron secret"))
			}
			return next(c)
		}
	}
}

func errorBody(code, message string) map[string]map[string]string {
	return map[string]map[string]string{"error": {"code": code, "message": message}}
}
