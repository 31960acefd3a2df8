package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/post-scheduler/config"
	"github.com/d60-Lab/post-scheduler/internal/auth"
	"github.com/d60-Lab/post-scheduler/internal/linkedin"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0.001, 2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "").Code)

	unlimited := gin.New()
	unlimited.Use(RateLimit(0, 0))
	unlimited.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, serve(unlimited, "").Code)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), Logger())
	r.GET("/x", func(c *gin.Context) { panic("boom") })

	w := serve(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestAuth(t *testing.T) {
	m := auth.NewManager(config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", Expire: time.Hour}, "")
	r := gin.New()
	r.Use(Auth(m))
	r.GET("/x", func(c *gin.Context) {
		claims, ok := Claims(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.Subject)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer nope").Code)

	token, _, err := m.Issue(&linkedin.Profile{Sub: "sub-9"}, "li")
	require.NoError(t, err)
	w := serve(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub-9", w.Body.String())
}
