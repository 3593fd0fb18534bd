package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID tags every request with a UUID. An upstream X-Request-ID is kept
// only when it parses as a UUID; anything else is replaced so that free-form
// client input never reaches the logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid, err := uuid.Parse(c.GetHeader(HeaderXRequestID))
		if err != nil {
			rid = uuid.New()
		}

		id := rid.String()
		c.Set(ContextRequestID, id)
		c.Header(HeaderXRequestID, id)
		c.Next()
	}
}

// RequestIDFrom returns the id assigned by RequestID, or "" outside it.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}
