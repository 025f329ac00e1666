package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextRequestIDKey stores the per-request correlation id in Gin context.
const ContextRequestIDKey = "request_id"

// RequestID tags every request with a correlation id, echoed in the response
// so operators can tie fan-out failure logs back to the triggering call.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(ContextRequestIDKey, id)
		ctx.Header("X-Request-Id", id)
		ctx.Next()
	}
}
