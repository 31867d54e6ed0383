package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"course_progress_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const secret = "middleware-test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", util.GetUserFromContext(c).UserID)
	})
	r.GET("/teach", AuthMiddleware(secret), RoleMiddleware(util.RoleInstructor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func sign(t *testing.T, userID uint, role util.UserRole, key string, ttl time.Duration) string {
	t.Helper()
	tok, err := util.GenerateJWT(userID, role, key, ttl)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	valid := sign(t, 7, util.RoleStudent, secret, time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"无令牌", "/me", "", http.StatusUnauthorized},
		{"签名错误", "/me", "Bearer " + sign(t, 7, util.RoleStudent, "other", time.Hour), http.StatusUnauthorized},
		{"已过期", "/me", "Bearer " + sign(t, 7, util.RoleStudent, secret, -time.Minute), http.StatusUnauthorized},
		{"请求头", "/me", "Bearer " + valid, http.StatusOK},
		{"查询参数", "/me?token=" + valid, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != "7" {
				t.Fatalf("user id = %q", w.Body.String())
			}
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	tests := []struct {
		role util.UserRole
		want int
	}{
		{util.RoleStudent, http.StatusForbidden},
		{util.RoleInstructor, http.StatusOK},
		{util.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teach", nil)
			req.Header.Set("Authorization", "Bearer "+sign(t, 1, tt.role, secret, time.Hour))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRoleMiddlewareWithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teach", RoleMiddleware(util.RoleInstructor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teach", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
