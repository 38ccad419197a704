package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newWebhookAuthRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/hook", WebhookAuthMiddleware(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestWebhookAuthMiddleware(t *testing.T) {
	r := newWebhookAuthRouter("tok-123")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/hook", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAuthMiddlewareUnconfigured(t *testing.T) {
	// A missing credential must fail closed, not open.
	r := newWebhookAuthRouter("")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("Authorization", "Bearer anything")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
