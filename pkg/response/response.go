package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeUnknownPayment   = 1001
	CodeUnknownTariff    = 1002
	CodeUnknownAccount   = 1003
	CodeGatewayError     = 1004
	CodeGatewayTimeout   = 1005
	CodeStoreUnavailable = 1006
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusBody 支付网关回调使用的极简响应体
type StatusBody struct {
	Status string `json:"status"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

// Status 以真实 HTTP 状态码返回 {"status": ...}，支付网关据此决定是否重推
func Status(c *gin.Context, httpCode int, status string) {
	c.JSON(httpCode, StatusBody{Status: status})
}
