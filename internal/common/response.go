package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidJSON    = 10001
	CodeInvalidPayload = 10002
	CodeMissingKey     = 10003
	CodeRouteNotFound  = 40400
	CodeNotFound       = 40401
	CodeMethodNotAllow = 40500
	CodeInternal       = 50000
	CodeStore          = 50001
	CodeEnqueue        = 50002
)

type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK writes body as-is with status 200.
func OK(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// Fail aborts the chain with the {code, message} envelope.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{Code: code, Message: msg})
}
