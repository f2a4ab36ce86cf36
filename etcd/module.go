package etcd

import (
	"context"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// Option 用于配置 etcd 模块
type Option func(*Builder)

// WithClient 添加 etcd 客户端配置
func WithClient(name string, opts ...func(*ClientOptions)) Option {
	return func(b *Builder) {
		b.AddClient(name, func(o *ClientOptions) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// WithEndpoints 设置服务器地址列表
func WithEndpoints(endpoints ...string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Endpoints = endpoints
	}
}

var (
	tokenMu sync.Mutex
	tokens  = make(map[string]*di.Token[*clientv3.Client])
)

// Named 返回命名客户端的令牌
func Named(name string) *di.Token[*clientv3.Client] {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	if t, ok := tokens[name]; ok {
		return t
	}
	t := di.NewToken[*clientv3.Client](Key(name))
	tokens[name] = t
	return t
}

// Key 返回命名客户端的字符串令牌，如 `di:"etcd.registry"`
func Key(name string) string {
	return "etcd." + name
}

// NewModule 创建 etcd 模块，导出 *Factory、命名客户端与默认客户端 *clientv3.Client
func NewModule(opts ...Option) *core.ModuleDef {
	b := NewBuilder()
	for _, opt := range opts {
		opt(b)
	}

	providers := []di.Provider{
		di.Factory[*Factory](func(ctx context.Context, logger logging.Logger) (*Factory, func() error, error) {
			f, err := b.Build(ctx, logger.WithCategory("etcd"))
			if err != nil {
				return nil, nil, err
			}
			return f, f.Close, nil
		}, di.WithSingleton()),
	}
	exports := []di.InjectionToken{di.TypeOf[*Factory]()}

	for _, name := range b.Names() {
		name := name
		providers = append(providers,
			di.Factory[*clientv3.Client](func(f *Factory) (*clientv3.Client, error) {
				return f.Get(name)
			}, di.WithSingleton(), di.WithToken(Named(name))),
			di.Alias(Key(name), Named(name)),
		)
		exports = append(exports, Named(name), Key(name))
	}
	if def := b.Default(); def != "" {
		providers = append(providers, di.Alias(di.TypeOf[*clientv3.Client](), Named(def)))
		exports = append(exports, di.TypeOf[*clientv3.Client]())
	}

	return core.NewModule("EtcdModule", core.Providers(providers...), core.Exports(exports...))
}
