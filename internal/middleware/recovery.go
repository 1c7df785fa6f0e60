package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contentmod/api/internal/response"
)

// Recovery converts a panicking handler into a generic server-fault
// envelope; one bad request must never take the process down.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", c.Writer.Header().Get(requestIDHeader)).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.ErrorEnvelope{
					Success: false,
					Message: "Internal Server Error",
					Errors:  []string{"internal server error"},
				})
			}
		}()
		c.Next()
	}
}
