package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/hosting"
	"github.com/gocrud/modkit/logging"
)

// ErrNotInitialized 在 Init 之前访问模块树时返回。
var ErrNotInitialized = errors.New("core: 应用尚未初始化")

// ReadyHook 在模块树就绪之后、OnApplicationBootstrap 之前调用，
// 用于挂载路由、注册托管服务等。
type ReadyHook func(ctx context.Context, app *Application) error

// Application 持有模块树以及应用级状态
type Application struct {
	// Features 存放扩展创建的对象（如 *web.Server）
	Features FeatureCollection

	// Lifecycle 启动与停止回调
	Lifecycle *LifecycleEvents

	// ErrorHandler 用于记录运行时产生的严重错误
	ErrorHandler func(err error)

	rootDef         *ModuleDef
	root            *Module
	host            *Module
	graph           *Graph
	logger          logging.Logger
	environment     Environment
	globals         []di.Provider
	readyHooks      []ReadyHook
	services        *hosting.HostedServiceManager
	shutdownTimeout time.Duration

	mu           sync.Mutex
	state        Status
	initErr      error
	runCancel    context.CancelFunc
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	stopErr      error
}

// New 创建应用并应用所有选项，模块树在 Init 时才会搭建。
func New(root *ModuleDef, opts ...Option) (*Application, error) {
	if err := checkModule(root, "根模块"); err != nil {
		return nil, err
	}

	app := &Application{
		Lifecycle:       NewLifecycle(),
		rootDef:         root,
		shutdownTimeout: 5 * time.Second,
		shutdownCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.logger == nil {
		app.logger = logging.NewLogger()
	}
	if app.environment == nil {
		app.environment = NewEnvironment("")
	}
	if app.ErrorHandler == nil {
		app.ErrorHandler = func(err error) {
			app.logger.Error("Runtime error", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	app.graph = NewGraph(app.logger)
	app.services = hosting.NewHostedServiceManager(app.logger)
	return app, nil
}

// Init 搭建模块树、执行就绪回调，然后对整棵树执行 OnApplicationBootstrap。
// 任何错误都会中止启动，之后再次调用返回同一个错误。
func (a *Application) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StatusReady {
		return nil
	}
	if a.initErr != nil {
		return a.initErr
	}

	a.state = StatusSettingUp
	if err := a.init(ctx); err != nil {
		a.initErr = err
		if cerr := a.graph.Close(); cerr != nil {
			a.logger.Error("启动失败后清理模块出错", logging.Field{Key: "error", Value: cerr.Error()})
		}
		return err
	}
	a.state = StatusReady
	return nil
}

func (a *Application) init(ctx context.Context) error {
	// 框架服务注册在一个隐藏的宿主模块中，根模块通过父模块继承获得它们
	providers := []di.Provider{
		di.Value[logging.Logger](a.logger),
		di.Value[Environment](a.environment),
		di.Value[*Application](a),
	}
	providers = append(providers, a.globals...)
	hostDef := NewModule("Application", Providers(providers...))

	host, err := a.graph.Setup(ctx, hostDef, nil)
	if err != nil {
		return err
	}
	root, err := a.graph.Setup(ctx, a.rootDef, host)
	if err != nil {
		return err
	}
	a.host, a.root = host, root

	for _, hook := range a.readyHooks {
		if err := hook(ctx, a); err != nil {
			return err
		}
	}

	if err := runBootstrap(ctx, root, a); err != nil {
		return err
	}

	a.logger.Debug(fmt.Sprintf("模块树:\n%s", root.Tree()))
	return nil
}

// Start 执行启动回调并启动所有托管服务。
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	state, initErr := a.state, a.initErr
	a.mu.Unlock()
	if initErr != nil {
		return initErr
	}
	if state != StatusReady {
		return ErrNotInitialized
	}
	if err := a.Lifecycle.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.runCancel = cancel
	a.mu.Unlock()

	errCh := a.services.StartAll(runCtx)
	go func() {
		select {
		case err := <-errCh:
			a.ErrorHandler(err)
			a.Shutdown()
		case <-runCtx.Done():
		}
	}()
	return nil
}

// Stop 依次停止托管服务、执行停止回调与 OnApplicationShutdown 钩子，
// 最后执行所有单例的清理函数。只会执行一次。
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error

		a.mu.Lock()
		cancel := a.runCancel
		ready := a.state == StatusReady
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		if err := a.services.StopAll(ctx); err != nil {
			errs = append(errs, err)
		}
		a.services.Wait()

		if err := a.Lifecycle.Stop(ctx); err != nil {
			errs = append(errs, err)
		}

		// 启动失败时模块已在 Init 中清理
		if ready && a.root != nil {
			if err := runShutdown(ctx, a.root); err != nil {
				errs = append(errs, err)
			}
			mods := bootstrapOrder(a.root)
			for i := len(mods) - 1; i >= 0; i-- {
				if err := mods[i].registry.Close(); err != nil {
					errs = append(errs, fmt.Errorf("core: 模块 %s 清理失败: %w", mods[i].name, err))
				}
			}
		}
		if ready && a.host != nil {
			if err := a.host.registry.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		a.stopErr = errors.Join(errs...)
		a.logger.Info("Application stopped")
	})
	return a.stopErr
}

// Run 初始化并启动应用，阻塞直到收到退出信号或调用 Shutdown，然后优雅关闭。
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Init(ctx); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.stopWithTimeout()
		return err
	}
	a.logger.Info("Application started", logging.Field{Key: "environment", Value: a.environment.Name()})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-a.Done():
	}

	return a.stopWithTimeout()
}

func (a *Application) stopWithTimeout() error {
	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	return a.Stop(ctx)
}

// Shutdown 请求应用退出
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// Done 返回一个通道，当应用需要退出时该通道会关闭
func (a *Application) Done() <-chan struct{} {
	return a.shutdownCh
}

// AddHostedService 添加托管服务，通常在 ReadyHook 或 OnApplicationBootstrap 中调用。
func (a *Application) AddHostedService(svc hosting.HostedService) {
	a.services.Add(svc)
}

// Root 返回根模块，Init 之前为 nil。
func (a *Application) Root() *Module {
	return a.root
}

// Logger 返回应用日志记录器
func (a *Application) Logger() logging.Logger {
	return a.logger
}

// Environment 返回应用环境
func (a *Application) Environment() Environment {
	return a.environment
}

// Resolve 从根模块解析令牌
func (a *Application) Resolve(ctx context.Context, token di.InjectionToken, scope *di.Scope) (any, error) {
	if a.root == nil {
		return nil, ErrNotInitialized
	}
	return a.root.Resolve(ctx, token, scope)
}

// CanProvide 判断根模块能否解析令牌
func (a *Application) CanProvide(token di.InjectionToken) bool {
	return a.root != nil && a.root.CanProvide(token)
}

// Provides 返回根模块可解析的令牌
func (a *Application) Provides() []di.InjectionToken {
	if a.root == nil {
		return nil
	}
	return a.root.Provides()
}

// Modules 返回模块树中的所有模块
func (a *Application) Modules() []*Module {
	if a.root == nil {
		return nil
	}
	return a.root.Modules()
}

// Controllers 返回模块树中的所有控制器
func (a *Application) Controllers() []ControllerRef {
	if a.root == nil {
		return nil
	}
	return a.root.Controllers()
}
