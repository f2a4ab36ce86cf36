package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/logging"
)

// Builder Web 服务构建器（基于 Gin）
//
// 路由与中间件先记录下来，在 Build 时按固定顺序装配：
// ScopeMiddleware → 请求日志 → panic 恢复 → 错误映射 → 用户中间件 → 路由。
type Builder struct {
	logger     logging.Logger
	addr       string
	prefix     string
	mode       string
	middleware []gin.HandlerFunc
	routes     []func(router gin.IRouter)
	configure  []func(engine *gin.Engine)
}

// NewBuilder 创建 Web 构建器，默认监听 :8080，gin 运行在发布模式
func NewBuilder() *Builder {
	return &Builder{
		addr: ":8080",
		mode: gin.ReleaseMode,
	}
}

// UseLogger 设置日志记录器
func (b *Builder) UseLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// UsePort 设置端口，0 表示随机端口
func (b *Builder) UsePort(port int) *Builder {
	b.addr = fmt.Sprintf(":%d", port)
	return b
}

// UseAddr 设置监听地址
func (b *Builder) UseAddr(addr string) *Builder {
	b.addr = addr
	return b
}

// UsePrefix 设置所有路由的公共前缀
func (b *Builder) UsePrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// Use 添加全局中间件，位于作用域中间件之后
func (b *Builder) Use(middleware ...gin.HandlerFunc) *Builder {
	b.middleware = append(b.middleware, middleware...)
	return b
}

// SetMode 设置 Gin 模式
func (b *Builder) SetMode(mode string) *Builder {
	b.mode = mode
	return b
}

// Configure 在装配路由前对 gin 引擎做高级定制
func (b *Builder) Configure(fn func(engine *gin.Engine)) *Builder {
	b.configure = append(b.configure, fn)
	return b
}

// Map 注册不属于任何控制器的路由，处理函数中的 Inject 从根模块解析
func (b *Builder) Map(fn func(router gin.IRouter)) *Builder {
	b.routes = append(b.routes, fn)
	return b
}

// Get 注册 GET 路由
func (b *Builder) Get(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Map(func(r gin.IRouter) { r.GET(path, handlers...) })
}

// Post 注册 POST 路由
func (b *Builder) Post(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Map(func(r gin.IRouter) { r.POST(path, handlers...) })
}

// Put 注册 PUT 路由
func (b *Builder) Put(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Map(func(r gin.IRouter) { r.PUT(path, handlers...) })
}

// Delete 注册 DELETE 路由
func (b *Builder) Delete(path string, handlers ...gin.HandlerFunc) *Builder {
	return b.Map(func(r gin.IRouter) { r.DELETE(path, handlers...) })
}

// Static 服务静态文件
func (b *Builder) Static(relativePath, root string) *Builder {
	return b.Map(func(r gin.IRouter) { r.Static(relativePath, root) })
}

// Build 构建 gin 引擎并挂载模块树中的所有控制器。
// root 为 nil 时不绑定默认模块，Map 注册的路由无法使用 Inject。
func (b *Builder) Build(root *core.Module, controllers []core.ControllerRef) (*Server, error) {
	logger := b.logger
	if logger == nil {
		logger = logging.Nop()
	}
	if b.mode != "" {
		gin.SetMode(b.mode)
	}

	engine := gin.New()
	engine.Use(ScopeMiddleware())
	if root != nil {
		engine.Use(bindModule(root))
	}
	engine.Use(RequestLogger(logger), recovery(logger), ErrorHandler(logger))
	engine.Use(b.middleware...)
	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody(NewNotFound("")))
	})
	for _, fn := range b.configure {
		fn(engine)
	}

	var router gin.IRouter = engine
	if b.prefix != "" {
		router = engine.Group(b.prefix)
	}
	for _, fn := range b.routes {
		fn(router)
	}

	for _, ref := range controllers {
		m, ok := ref.Controller.(Mountable)
		if !ok {
			logger.Warn("Skipping controller without routes",
				logging.Field{Key: "controller", Value: fmt.Sprintf("%T", ref.Controller)},
				logging.Field{Key: "module", Value: ref.Module.Name()})
			continue
		}
		if err := m.Mount(router, ref.Module); err != nil {
			return nil, err
		}
		logger.Info("Mapped controller routes",
			logging.Field{Key: "controller", Value: fmt.Sprint(ref.Controller)},
			logging.Field{Key: "module", Value: ref.Module.Name()})
	}

	return newServer(b.addr, engine, logger), nil
}
