package config

import (
	"context"
	"sync"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// ModuleOption 配置 ConfigModule
type ModuleOption func(*moduleOptions)

type moduleOptions struct {
	builder *ConfigurationBuilder
	config  ReloadableConfiguration
	watch   bool
}

// WithYamlFile 添加 YAML 文件
func WithYamlFile(path string, optional ...bool) ModuleOption {
	return func(o *moduleOptions) { o.builder.AddYamlFile(path, optional...) }
}

// WithJsonFile 添加 JSON 文件
func WithJsonFile(path string, optional ...bool) ModuleOption {
	return func(o *moduleOptions) { o.builder.AddJsonFile(path, optional...) }
}

// WithEnv 添加带前缀的环境变量
func WithEnv(prefix string) ModuleOption {
	return func(o *moduleOptions) { o.builder.AddEnvironmentVariables(prefix) }
}

// WithInMemory 添加内存数据
func WithInMemory(data map[string]any) ModuleOption {
	return func(o *moduleOptions) { o.builder.AddInMemory(data) }
}

// WithEtcd 添加 etcd 配置源
func WithEtcd(opts EtcdOptions) ModuleOption {
	return func(o *moduleOptions) { o.builder.AddEtcd(opts) }
}

// WithSource 添加自定义配置源
func WithSource(source ConfigurationSource) ModuleOption {
	return func(o *moduleOptions) { o.builder.Add(source) }
}

// WithConfiguration 使用已构建的配置，忽略其它配置源
func WithConfiguration(cfg ReloadableConfiguration) ModuleOption {
	return func(o *moduleOptions) { o.config = cfg }
}

// WithWatch 在应用启动后监听支持变更通知的配置源（如 etcd）
func WithWatch() ModuleOption {
	return func(o *moduleOptions) { o.watch = true }
}

// NewModule 创建配置模块，导出 Configuration 与 ReloadableConfiguration（单例）。
//
// 示例：
//
//	var ConfigModule = config.NewModule(
//		config.WithYamlFile("appsettings.yaml"),
//		config.WithEnv("APP_"),
//	)
func NewModule(opts ...ModuleOption) *core.ModuleDef {
	o := &moduleOptions{builder: NewConfigurationBuilder()}
	for _, opt := range opts {
		opt(o)
	}

	build := func() (ReloadableConfiguration, error) {
		if o.config != nil {
			return o.config, nil
		}
		return o.builder.BuildReloadable()
	}
	newWatcher := func(cfg ReloadableConfiguration, logger logging.Logger) *Watcher {
		return &Watcher{cfg: cfg, logger: logger.WithCategory("config"), enabled: o.watch}
	}

	return core.NewModule("ConfigModule",
		core.Providers(
			di.Factory[ReloadableConfiguration](build, di.WithSingleton()),
			di.Alias(di.TypeOf[Configuration](), di.TypeOf[ReloadableConfiguration]()),
			di.Class[*Watcher](newWatcher, di.WithSingleton()),
		),
		core.Exports(di.TypeOf[Configuration](), di.TypeOf[ReloadableConfiguration]()),
	)
}

// Provide 为配置节 section 注册选项提供者：
// *OptionsCache[T]、Option[T]、OptionMonitor[T] 为单例，OptionSnapshot[T] 为 Scoped。
// 所在模块需要能解析 Configuration。
func Provide[T any](section string) []di.Provider {
	return []di.Provider{
		di.Factory[*OptionsCache[T]](func(cfg Configuration) *OptionsCache[T] {
			return NewOptionsCache[T](cfg, section)
		}, di.WithSingleton()),
		di.Factory[Option[T]](func(c *OptionsCache[T]) Option[T] {
			return NewOption(c.Get())
		}, di.WithSingleton()),
		di.Factory[OptionMonitor[T]](func(c *OptionsCache[T]) OptionMonitor[T] {
			return NewOptionMonitor(c)
		}, di.WithSingleton()),
		di.Factory[OptionSnapshot[T]](func(c *OptionsCache[T]) OptionSnapshot[T] {
			return NewOptionSnapshot(c.Snapshot())
		}, di.WithScoped()),
	}
}

// Watcher 在应用运行期间监听配置源变更
type Watcher struct {
	cfg     ReloadableConfiguration
	logger  logging.Logger
	enabled bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// OnApplicationBootstrap 启动监听
func (w *Watcher) OnApplicationBootstrap(_ context.Context, _ *core.Application) error {
	if !w.enabled {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel, w.done = cancel, make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := w.cfg.Watch(ctx); err != nil {
			w.logger.Error("配置监听已停止", logging.Field{Key: "error", Value: err.Error()})
		}
	}(w.done)
	w.logger.Debug("配置监听已启动")
	return nil
}

// OnApplicationShutdown 停止监听
func (w *Watcher) OnApplicationShutdown(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
