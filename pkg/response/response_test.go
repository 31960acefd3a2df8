package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSuccess(t *testing.T) {
	w, body := run(t, func(c *gin.Context) { Success(c, gin.H{"id": "p1"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CodeSuccess, body.Code)
	assert.Equal(t, map[string]interface{}{"id": "p1"}, body.Data)
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		name   string
		fn     func(c *gin.Context)
		status int
		code   int
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "x") }, http.StatusBadRequest, CodeBadRequest},
		{"not found", func(c *gin.Context) { NotFound(c, "x") }, http.StatusNotFound, CodeNotFound},
		{"conflict", func(c *gin.Context) { Conflict(c, "x") }, http.StatusConflict, CodeConflict},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "x") }, http.StatusUnauthorized, CodeUnauthorized},
		{"internal", func(c *gin.Context) { InternalError(c, errors.New("boom")) }, http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := run(t, tc.fn)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestInternalError_HidesCauseOutsideDebug(t *testing.T) {
	_, body := run(t, func(c *gin.Context) { InternalError(c, errors.New("db password leaked")) })
	assert.Equal(t, "internal server error", body.Message)
}
