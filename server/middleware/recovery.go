package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
)

// Recovery turns a panic into a 500 JSON error and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Get("server").WithContext(c.Request.Context()).Error("panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprint(rec),
					"stack", string(debug.Stack()),
					logger.FieldPath, c.Request.URL.Path,
					logger.FieldMethod, c.Request.Method,
				))
				appErr := errors.Internal(fmt.Errorf("panic: %v", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":       http.StatusInternalServerError,
					"message":    appErr.Message,
					"error_code": appErr.Code,
				})
			}
		}()
		c.Next()
	}
}
