package database

import (
	"context"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// Option 用于配置数据库模块
type Option func(*Builder)

// WithDatabase 添加数据库配置
func WithDatabase(name string, dialector gorm.Dialector, opts ...func(*Options)) Option {
	return func(b *Builder) {
		b.Add(name, dialector, func(o *Options) {
			for _, opt := range opts {
				opt(o)
			}
		})
	}
}

// WithSQLite 添加 SQLite 数据库，dsn 如 "app.db" 或 "file::memory:?cache=shared"
func WithSQLite(name, dsn string, opts ...func(*Options)) Option {
	return WithDatabase(name, sqlite.Open(dsn), opts...)
}

var (
	tokenMu sync.Mutex
	tokens  = make(map[string]*di.Token[*gorm.DB])
)

// Named 返回命名实例的令牌，同名总是返回同一个令牌
func Named(name string) *di.Token[*gorm.DB] {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	if t, ok := tokens[name]; ok {
		return t
	}
	t := di.NewToken[*gorm.DB](Key(name))
	tokens[name] = t
	return t
}

// Key 返回命名实例的字符串令牌，用于字段注入 `di:"database.master"`
func Key(name string) string {
	return "database." + name
}

// NewModule 创建数据库模块。
//
// 导出 *Factory、每个命名实例（Named / Key），以及默认实例 *gorm.DB。
// 连接在模块初始化时打开并完成自动迁移，应用停止时关闭。
func NewModule(opts ...Option) *core.ModuleDef {
	b := NewBuilder()
	for _, opt := range opts {
		opt(b)
	}

	providers := []di.Provider{
		di.Factory[*Factory](func(ctx context.Context, logger logging.Logger) (*Factory, func() error, error) {
			f, err := b.Build(ctx, logger.WithCategory("database"))
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
			di.Factory[*gorm.DB](func(f *Factory) (*gorm.DB, error) {
				return f.Get(name)
			}, di.WithSingleton(), di.WithToken(Named(name))),
			di.Alias(Key(name), Named(name)),
		)
		exports = append(exports, Named(name), Key(name))
	}
	if def := b.Default(); def != "" {
		providers = append(providers, di.Alias(di.TypeOf[*gorm.DB](), Named(def)))
		exports = append(exports, di.TypeOf[*gorm.DB]())
	}

	return core.NewModule("DatabaseModule", core.Providers(providers...), core.Exports(exports...))
}
