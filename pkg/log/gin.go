package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// GinMiddleware returns a Gin middleware that:
//  1. Reads the request ID from X-Request-ID or generates one.
//  2. Injects a child logger carrying request metadata into the request context.
//  3. Echoes X-Request-ID on the response.
//  4. Logs the completed request, including the caller identity set by the auth middleware.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		lvl := zerolog.InfoLevel
		if c.Writer.Status() >= 500 {
			lvl = zerolog.ErrorLevel
		}
		evt := child.WithLevel(lvl).
			Int(FieldStatus, c.Writer.Status()).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds()))

		if userID, ok := c.Get(FieldUserID); ok {
			if id, ok := userID.(int64); ok {
				evt = evt.Int64(FieldUserID, id)
			}
		}
		if username, ok := c.Get(FieldUsername); ok {
			if name, ok := username.(string); ok && name != "" {
				evt = evt.Str(FieldUsername, name)
			}
		}
		if roomID := c.Param("id"); roomID != "" {
			evt = evt.Str(FieldRoomID, roomID)
		}

		evt.Msg("request completed")
	}
}
