package web

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

const (
	// RequestIDHeader 请求 ID 响应头，值为请求作用域的 ID
	RequestIDHeader = "X-Request-ID"

	scopeKey  = "modkit.scope"
	moduleKey = "modkit.module"
)

// ErrNoModule 在处理函数所在的上下文中找不到模块时返回
var ErrNoModule = errors.New("web: 当前请求未关联任何模块")

// ScopeMiddleware 为每个请求打开一个 di.Scope，请求结束时释放。
// 作用域同时保存在 gin.Context 与 request 的 context.Context 中，
// 之后的中间件、控制器与 Inject 都会使用同一个作用域。
func ScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := di.NewScope()
		defer func() {
			_ = scope.Dispose()
		}()

		c.Set(scopeKey, scope)
		c.Request = c.Request.WithContext(di.ContextWithScope(c.Request.Context(), scope))
		c.Header(RequestIDHeader, scope.ID())

		c.Next()
	}
}

// ScopeFrom 返回当前请求的作用域，未安装 ScopeMiddleware 时返回 nil
func ScopeFrom(c *gin.Context) *di.Scope {
	if v, ok := c.Get(scopeKey); ok {
		if s, ok := v.(*di.Scope); ok {
			return s
		}
	}
	if s, ok := di.ScopeFrom(c.Request.Context()); ok {
		return s
	}
	return nil
}

// ModuleFrom 返回处理当前请求的模块：控制器路由为控制器所属模块，其他路由为根模块
func ModuleFrom(c *gin.Context) (*core.Module, bool) {
	v, ok := c.Get(moduleKey)
	if !ok {
		return nil, false
	}
	m, ok := v.(*core.Module)
	return m, ok
}

// Inject 在处理函数中以当前请求作用域解析类型 T
//
//	func (ctl *TodoController) List(c *gin.Context) {
//		svc, err := web.Inject[*TodoService](c)
//		...
//	}
func Inject[T any](c *gin.Context) (T, error) {
	return InjectAs[T](c, di.TypeOf[T]())
}

// InjectToken 解析带名称的令牌
func InjectToken[T any](c *gin.Context, token *di.Token[T]) (T, error) {
	return InjectAs[T](c, token)
}

// InjectAs 解析任意令牌并断言为 T
func InjectAs[T any](c *gin.Context, token di.InjectionToken) (T, error) {
	m, ok := ModuleFrom(c)
	if !ok {
		var zero T
		return zero, ErrNoModule
	}
	return di.ResolveAs[T](c.Request.Context(), m, token, ScopeFrom(c))
}

// bindModule 将模块关联到请求上下文
func bindModule(m *core.Module) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(moduleKey, m)
		c.Next()
	}
}

// RequestLogger 记录每个请求的方法、路径、状态码与耗时
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			logging.Field{Key: "method", Value: c.Request.Method},
			logging.Field{Key: "path", Value: c.Request.URL.Path},
			logging.Field{Key: "status", Value: c.Writer.Status()},
			logging.Field{Key: "latency", Value: time.Since(start).String()},
			logging.Field{Key: "request_id", Value: c.Writer.Header().Get(RequestIDHeader)})
	}
}
