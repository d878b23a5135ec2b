package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRole(e *echo.Echo, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		ctx := context.WithValue(req.Context(), UserRoleKey, role)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	g := e.Group("", RequireRole("doctor", "nurse"))
	g.GET("/care", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	cases := []struct {
		role string
		want int
	}{
		{"doctor", http.StatusOK},
		{"nurse", http.StatusOK},
		{"admin", http.StatusOK}, // admin passes every check
		{"receptionist", http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	for _, tc := range cases {
		rec := requestWithRole(e, "/care", tc.role)
		if rec.Code != tc.want {
			t.Errorf("role %q: expected %d, got %d", tc.role, tc.want, rec.Code)
		}
	}
}
