package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carelink/clinicpay/pkg/response"
)

// WebhookAuthMiddleware checks the provider's bearer credential before any
// body parsing. A missing configured token rejects all traffic; it must
// never fail open.
func WebhookAuthMiddleware(configuredToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if configuredToken == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				response.ErrorT[any](response.APIResponseCodeError, "webhook bearer token is not configured"))
			return
		}
		presented := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(configuredToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid webhook credential"))
			return
		}
		c.Next()
	}
}
