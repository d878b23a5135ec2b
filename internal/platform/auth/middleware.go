// Package auth provides JWT authentication and role-based access control for
// the HTTP and WebSocket layers.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey       contextKey = "user_id"
	UserNameKey     contextKey = "user_name"
	UserRoleKey     contextKey = "user_role"
	DepartmentIDKey contextKey = "department_id"
)

// Claims carries the hospital staff identity inside a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Name         string `json:"name"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

// ParseToken validates tokenStr against the HMAC secret and returns its
// claims.
func ParseToken(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// JWTMiddleware authenticates requests with a Bearer token signed by the
// shared secret and places the staff identity on the request context.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := ParseToken(parts[1], secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), claims)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that grants
// every request admin access when no Authorization header is present.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				ctx := c.Request().Context()
				ctx = context.WithValue(ctx, UserIDKey, "dev-user")
				ctx = context.WithValue(ctx, UserNameKey, "Development User")
				ctx = context.WithValue(ctx, UserRoleKey, "admin")
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// WithIdentity returns ctx annotated with the staff identity from claims.
func WithIdentity(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
	ctx = context.WithValue(ctx, UserNameKey, claims.Name)
	ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
	ctx = context.WithValue(ctx, DepartmentIDKey, claims.DepartmentID)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func UserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UserNameKey).(string)
	return name
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func DepartmentFromContext(ctx context.Context) string {
	dep, _ := ctx.Value(DepartmentIDKey).(string)
	return dep
}
