package web

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/gocrud/modkit/core"
)

// Option 用于配置 Web Builder
type Option func(*Builder)

// WithPort 设置端口
func WithPort(port int) Option {
	return func(b *Builder) {
		b.UsePort(port)
	}
}

// WithAddr 设置监听地址，例如 "127.0.0.1:0"
func WithAddr(addr string) Option {
	return func(b *Builder) {
		b.UseAddr(addr)
	}
}

// WithPrefix 为所有路由添加前缀，例如 "/api"
func WithPrefix(prefix string) Option {
	return func(b *Builder) {
		b.UsePrefix(prefix)
	}
}

// WithMiddleware 添加全局中间件
func WithMiddleware(middleware ...gin.HandlerFunc) Option {
	return func(b *Builder) {
		b.Use(middleware...)
	}
}

// WithMode 设置 gin 模式（gin.DebugMode / gin.ReleaseMode / gin.TestMode）
func WithMode(mode string) Option {
	return func(b *Builder) {
		b.SetMode(mode)
	}
}

// WithRoutes 注册不属于控制器的路由
func WithRoutes(fn func(router gin.IRouter)) Option {
	return func(b *Builder) {
		b.Map(fn)
	}
}

// WithEngine 对 gin 引擎做高级定制
func WithEngine(fn func(engine *gin.Engine)) Option {
	return func(b *Builder) {
		b.Configure(fn)
	}
}

// New 启用 Web 能力：模块树就绪后挂载所有控制器，并将 *Server 注册为托管服务。
// 之后可以通过 core.GetFeature[*web.Server](app) 取得服务实例。
func New(opts ...Option) core.Option {
	return core.OnReady(func(_ context.Context, app *core.Application) error {
		builder := NewBuilder()
		for _, opt := range opts {
			opt(builder)
		}
		if builder.logger == nil {
			builder.UseLogger(app.Logger().WithCategory("web"))
		}

		server, err := builder.Build(app.Root(), app.Controllers())
		if err != nil {
			return err
		}
		app.Features.Set(server)
		app.AddHostedService(server)
		return nil
	})
}
