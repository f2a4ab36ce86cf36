package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
)

// Route 描述控制器上的一条路由，处理函数通常是控制器的方法表达式，
// 例如 (*TodoController).List。
type Route[C any] struct {
	Method     string
	Path       string
	Handler    func(C, *gin.Context)
	Middleware []gin.HandlerFunc
}

// Handle 创建任意方法的路由
func Handle[C any](method, path string, handler func(C, *gin.Context), middleware ...gin.HandlerFunc) Route[C] {
	return Route[C]{Method: method, Path: path, Handler: handler, Middleware: middleware}
}

func GET[C any](path string, handler func(C, *gin.Context), middleware ...gin.HandlerFunc) Route[C] {
	return Handle(http.MethodGet, path, handler, middleware...)
}

func POST[C any](path string, handler func(C, *gin.Context), middleware ...gin.HandlerFunc) Route[C] {
	return Handle(http.MethodPost, path, handler, middleware...)
}

func PUT[C any](path string, handler func(C, *gin.Context), middleware ...gin.HandlerFunc) Route[C] {
	return Handle(http.MethodPut, path, handler, middleware...)
}

func PATCH[C any](path string, handler func(C, *gin.Context), middleware ...gin.HandlerFunc) Route[C] {
	return Handle(http.MethodPatch, path, handler, middleware...)
}

func DELETE[C any](path string, handler func(C, *gin.Context), middleware ...gin.HandlerFunc) Route[C] {
	return Handle(http.MethodDelete, path, handler, middleware...)
}

// Mountable 由可以挂载到 gin 路由上的控制器实现
type Mountable interface {
	Mount(router gin.IRouter, owner *core.Module) error
}

// Controller 是带路由表的控制器声明，实现 core.Controller。
//
// 控制器本身作为提供者注册到所属模块（默认瞬态），每个请求都会通过所属模块
// 以请求作用域重新解析，因此控制器可以依赖 Scoped 服务。
//
//	var todoController = web.NewController("/todos", NewTodoController,
//		web.GET("", (*TodoController).List),
//		web.POST("", (*TodoController).Create),
//	)
type Controller[C any] struct {
	prefix     string
	ctor       any
	token      *di.Token[C]
	opts       []di.Option
	routes     []Route[C]
	middleware []gin.HandlerFunc
}

// NewController 创建控制器声明。ctor 为 nil 时对 C 做结构体注入。
func NewController[C any](prefix string, ctor any, routes ...Route[C]) *Controller[C] {
	return &Controller[C]{
		prefix: prefix,
		ctor:   ctor,
		token:  di.NewToken[C]("controller:" + prefix),
		routes: routes,
	}
}

// With 追加控制器提供者的选项，例如 di.WithScoped() 或 di.WithDeps(...)
func (c *Controller[C]) With(opts ...di.Option) *Controller[C] {
	c.opts = append(c.opts, opts...)
	return c
}

// Use 为控制器的所有路由添加中间件
func (c *Controller[C]) Use(middleware ...gin.HandlerFunc) *Controller[C] {
	c.middleware = append(c.middleware, middleware...)
	return c
}

// Token 返回控制器在所属模块中的令牌
func (c *Controller[C]) Token() *di.Token[C] {
	return c.token
}

// Prefix 返回路由前缀
func (c *Controller[C]) Prefix() string {
	return c.prefix
}

func (c *Controller[C]) String() string {
	return fmt.Sprintf("%v(%s)", di.TypeOf[C](), c.prefix)
}

// Provider 实现 core.Controller
func (c *Controller[C]) Provider() di.Provider {
	opts := append([]di.Option{di.WithTransient()}, c.opts...)
	opts = append(opts, di.WithToken(c.token))
	return di.Class[C](c.ctor, opts...)
}

// Setup 实现 core.Controller，校验路由表
func (c *Controller[C]) Setup(owner *core.Module) error {
	for i, r := range c.routes {
		if r.Handler == nil {
			return fmt.Errorf("web: 控制器 %s 的第 %d 条路由缺少处理函数", c, i+1)
		}
		if !validMethod(r.Method) {
			return fmt.Errorf("web: 控制器 %s 的路由 %s 使用了无效的方法 %q", c, r.Path, r.Method)
		}
	}
	return nil
}

// Mount 实现 Mountable，将路由挂载到 router，请求时从 owner 解析控制器
func (c *Controller[C]) Mount(router gin.IRouter, owner *core.Module) (err error) {
	// gin 在路由冲突时 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("web: 挂载控制器 %s 失败: %v", c, r)
		}
	}()

	handlers := append([]gin.HandlerFunc{bindModule(owner)}, c.middleware...)
	group := router.Group(c.prefix, handlers...)
	for _, r := range c.routes {
		chain := make([]gin.HandlerFunc, 0, len(r.Middleware)+1)
		chain = append(chain, r.Middleware...)
		chain = append(chain, c.handle(owner, r))
		group.Handle(r.Method, r.Path, chain...)
	}
	return nil
}

func (c *Controller[C]) handle(owner *core.Module, route Route[C]) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		inst, err := di.ResolveToken(ctx.Request.Context(), owner, c.token, ScopeFrom(ctx))
		if err != nil {
			_ = ctx.Error(fmt.Errorf("web: 解析控制器 %s 失败: %w", c, err))
			ctx.Abort()
			return
		}
		route.Handler(inst, ctx)
	}
}

func validMethod(method string) bool {
	if method == "" {
		return false
	}
	return strings.ToUpper(method) == method && !strings.ContainsAny(method, " /")
}
