package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ylai/autoplatform/errors"
)

// Envelope is the backend response shape: code 0 on success.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RespondOK writes {"code":0,"data":data}.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Data: data})
}

// RespondMessage writes {"code":0,"message":msg}.
func RespondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Envelope{Code: 0, Message: msg})
}

// RespondWithError writes err with the status of its *errors.AppError, or
// a 500 for any other error.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.Status(), appErr.ToResponse())
}
