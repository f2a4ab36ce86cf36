package redis

import (
	"context"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// Option 用于配置 Redis 模块
type Option func(*Builder)

// WithClient 添加 Redis 客户端配置
func WithClient(name string, opts ...func(*ClientOptions)) Option {
	return func(b *Builder) {
		b.AddClient(name, func(o *ClientOptions) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// WithOptions 添加已加载好的客户端配置，常与 config.Load 配合使用。
// 未设置的地址、超时与连接池大小沿用默认值。
func WithOptions(opts ClientOptions) Option {
	return func(b *Builder) {
		b.AddClient(opts.Name, func(o *ClientOptions) {
			defaults := *o
			*o = opts
			if o.Addr == "" {
				o.Addr = defaults.Addr
			}
			if o.DialTimeout == 0 {
				o.DialTimeout = defaults.DialTimeout
			}
			if o.ReadTimeout == 0 {
				o.ReadTimeout = defaults.ReadTimeout
			}
			if o.WriteTimeout == 0 {
				o.WriteTimeout = defaults.WriteTimeout
			}
			if o.PoolSize == 0 {
				o.PoolSize = defaults.PoolSize
			}
		})
	}
}

var (
	tokenMu sync.Mutex
	tokens  = make(map[string]*di.Token[*goredis.Client])
)

// Named 返回命名客户端的令牌，同名总是返回同一个令牌
//
//	di.Factory[*CacheService](NewCacheService, di.WithDeps(redis.Named("cache")))
func Named(name string) *di.Token[*goredis.Client] {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	if t, ok := tokens[name]; ok {
		return t
	}
	t := di.NewToken[*goredis.Client](Key(name))
	tokens[name] = t
	return t
}

// Key 返回命名客户端的字符串令牌，用于字段注入 `di:"redis.cache"`
func Key(name string) string {
	return "redis." + name
}

// NewModule 创建 Redis 模块。
//
// 导出 *Factory、每个命名客户端（Named / Key），以及默认客户端 *goredis.Client。
// 客户端在模块初始化时创建，应用停止时关闭。
func NewModule(opts ...Option) *core.ModuleDef {
	b := NewBuilder()
	for _, opt := range opts {
		opt(b)
	}

	providers := []di.Provider{
		di.Factory[*Factory](func(ctx context.Context, logger logging.Logger) (*Factory, func() error, error) {
			f, err := b.Build(ctx, logger.WithCategory("redis"))
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
			di.Factory[*goredis.Client](func(f *Factory) (*goredis.Client, error) {
				return f.Get(name)
			}, di.WithSingleton(), di.WithToken(Named(name))),
			di.Alias(Key(name), Named(name)),
		)
		exports = append(exports, Named(name), Key(name))
	}
	if def := b.Default(); def != "" {
		providers = append(providers, di.Alias(di.TypeOf[*goredis.Client](), Named(def)))
		exports = append(exports, di.TypeOf[*goredis.Client]())
	}

	return core.NewModule("RedisModule", core.Providers(providers...), core.Exports(exports...))
}
