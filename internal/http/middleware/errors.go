package middleware

import (
	"github.com/gin-gonic/gin"
)

// abort stops the chain with the API's standard error envelope. It mirrors
// handlers.Fail without importing the handlers package.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
