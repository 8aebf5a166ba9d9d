package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deposit-core/pkg/errno"
	"deposit-core/pkg/monitor"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// ErrorData 前端弹窗用: title + description
type ErrorData struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.Set(monitor.CodeKey, errno.OK.Code)
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error 默认 200, 查不到 404, 同一钱包并发确认 409
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	var data interface{} = gin.H{}
	if e, ok := errno.As(err); ok {
		data = ErrorData{Title: e.Message, Description: e.Detail}
	}
	c.Set(monitor.CodeKey, code)
	c.JSON(httpStatus(err), Response{
		Code:    code,
		Message: msg,
		Data:    data,
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errno.ErrDepositNotFound):
		return http.StatusNotFound
	case errors.Is(err, errno.ErrAttemptInFlight):
		return http.StatusConflict
	}
	return http.StatusOK
}
