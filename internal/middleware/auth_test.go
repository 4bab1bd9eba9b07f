package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"delivery-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(secret))
	r.GET("/whoami", func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.GenerateJWT(secret, "u1", "u1@gmail.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func get(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentity(t *testing.T) {
	r := newRouter()

	w := get(r, "/whoami", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = get(r, "/whoami", "Bearer "+token(t, "customer"))
	assert.Equal(t, "u1", w.Body.String())

	w = get(r, "/whoami?token="+token(t, "customer"), "")
	assert.Equal(t, "u1", w.Body.String())

	w = get(r, "/whoami", "Token abc")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(r, "/whoami", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token","code":"unauthorized"}`, w.Body.String())

	expired, err := utils.GenerateJWT(secret, "u1", "", utils.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	w = get(r, "/whoami", "Bearer "+expired)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", "Bearer "+token(t, "customer")).Code)

	w := get(r, "/admin", "Bearer "+token(t, utils.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
