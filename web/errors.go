package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/modkit/logging"
)

// HTTPError 是可以直接映射为 HTTP 响应的错误。
// 处理函数通过 c.Error(err) 上报，由 ErrorHandler 中间件统一写出。
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Wrap 附加底层错误，便于日志记录
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Err = err
	return e
}

// NewHTTPError 创建指定状态码的错误，message 为空时使用状态码的标准文本。
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message}
}

func NewBadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message)
}

func NewUnauthorized(message string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message)
}

func NewForbidden(message string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, message)
}

func NewNotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message)
}

func NewConflict(message string) *HTTPError {
	return NewHTTPError(http.StatusConflict, message)
}

func NewInternal(message string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message)
}

// errorBody 渲染统一的错误响应体 {code, error, message}
func errorBody(e *HTTPError) gin.H {
	return gin.H{
		"code":    e.Code,
		"error":   http.StatusText(e.Code),
		"message": e.Message,
	}
}

// ErrorHandler 将处理过程中记录到 c.Errors 的最后一个错误写为 JSON 响应。
// *HTTPError 按其状态码输出，其他错误一律视为 500，细节只写入日志。
func ErrorHandler(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			logger.Error("Request failed",
				logging.Field{Key: "method", Value: c.Request.Method},
				logging.Field{Key: "path", Value: c.Request.URL.Path},
				logging.Field{Key: "error", Value: err.Error()})
			httpErr = NewInternal("")
		} else if httpErr.Code >= http.StatusInternalServerError {
			logger.Error("Request failed",
				logging.Field{Key: "method", Value: c.Request.Method},
				logging.Field{Key: "path", Value: c.Request.URL.Path},
				logging.Field{Key: "error", Value: httpErr.Error()})
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(httpErr.Code, errorBody(httpErr))
	}
}

// recovery 捕获处理函数中的 panic 并返回 500
func recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered",
			logging.Field{Key: "path", Value: c.Request.URL.Path},
			logging.Field{Key: "panic", Value: fmt.Sprint(recovered)})
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(NewInternal("")))
	})
}
