package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/hosting"
	"github.com/gocrud/modkit/logging"
)

// Option 定义了修改 Application 状态的函数签名
// 这是框架唯一的扩展点
type Option func(app *Application) error

// WithLogger 设置应用日志记录器，该记录器会以值提供者的形式注册到所有模块可见的宿主模块中
func WithLogger(logger logging.Logger) Option {
	return func(app *Application) error {
		if logger == nil {
			return errors.New("core: logger 不能为 nil")
		}
		app.logger = logger
		return nil
	}
}

// WithEnvironment 设置运行环境名称
func WithEnvironment(name string) Option {
	return func(app *Application) error {
		app.environment = NewEnvironment(name)
		return nil
	}
}

// WithShutdownTimeout 设置优雅关闭的超时时间，默认 5 秒
func WithShutdownTimeout(d time.Duration) Option {
	return func(app *Application) error {
		if d <= 0 {
			return fmt.Errorf("core: 无效的关闭超时 %s", d)
		}
		app.shutdownTimeout = d
		return nil
	}
}

// WithErrorHandler 设置运行时错误处理函数
func WithErrorHandler(fn func(error)) Option {
	return func(app *Application) error {
		app.ErrorHandler = fn
		return nil
	}
}

// WithProviders 注册全局提供者，所有模块都可以通过父模块继承解析它们
func WithProviders(providers ...di.Provider) Option {
	return func(app *Application) error {
		app.globals = append(app.globals, providers...)
		return nil
	}
}

// OnReady 注册就绪回调
func OnReady(fn ReadyHook) Option {
	return func(app *Application) error {
		app.readyHooks = append(app.readyHooks, fn)
		return nil
	}
}

// WithHostedService 从根模块解析 token 对应的托管服务并在 Start 时启动
func WithHostedService(token di.InjectionToken) Option {
	return OnReady(func(ctx context.Context, app *Application) error {
		v, err := app.Resolve(ctx, token, nil)
		if err != nil {
			return err
		}
		svc, ok := v.(hosting.HostedService)
		if !ok {
			return fmt.Errorf("core: %s 未实现 hosting.HostedService", di.TokenName(token))
		}
		app.AddHostedService(svc)
		return nil
	})
}

// WithWorker 注册一个简单的后台任务
func WithWorker(name string, fn hosting.WorkerFunc) Option {
	return OnReady(func(_ context.Context, app *Application) error {
		app.AddHostedService(hosting.NewWorker(name, fn))
		return nil
	})
}
