package mongodb

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// Option 用于配置 MongoDB 模块
type Option func(*Builder)

// WithClient 添加 MongoDB 客户端配置
func WithClient(name string, uri string, opts ...func(*ClientOptions)) Option {
	return func(b *Builder) {
		b.AddClient(name, uri, func(o *ClientOptions) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

var (
	tokenMu sync.Mutex
	tokens  = make(map[string]*di.Token[*mongo.Client])
)

// Named 返回命名客户端的令牌
func Named(name string) *di.Token[*mongo.Client] {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	if t, ok := tokens[name]; ok {
		return t
	}
	t := di.NewToken[*mongo.Client](Key(name))
	tokens[name] = t
	return t
}

// Key 返回命名客户端的字符串令牌
func Key(name string) string {
	return "mongodb." + name
}

// NewModule 创建 MongoDB 模块，导出 *Factory、命名客户端与默认客户端 *mongo.Client
func NewModule(opts ...Option) *core.ModuleDef {
	b := NewBuilder()
	for _, opt := range opts {
		opt(b)
	}

	providers := []di.Provider{
		di.Factory[*Factory](func(ctx context.Context, logger logging.Logger) (*Factory, func() error, error) {
			f, err := b.Build(ctx, logger.WithCategory("mongodb"))
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
			di.Factory[*mongo.Client](func(f *Factory) (*mongo.Client, error) {
				return f.Get(name)
			}, di.WithSingleton(), di.WithToken(Named(name))),
			di.Alias(Key(name), Named(name)),
		)
		exports = append(exports, Named(name), Key(name))
	}
	if def := b.Default(); def != "" {
		providers = append(providers, di.Alias(di.TypeOf[*mongo.Client](), Named(def)))
		exports = append(exports, di.TypeOf[*mongo.Client]())
	}

	return core.NewModule("MongoModule", core.Providers(providers...), core.Exports(exports...))
}
