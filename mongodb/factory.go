package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/gocrud/modkit/logging"
)

// Factory MongoDB 客户端工厂
type Factory struct {
	clients map[string]*mongo.Client
	configs map[string]ClientOptions
	names   []string
	logger  logging.Logger
	mu      sync.RWMutex
}

// NewFactory 创建客户端工厂
func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Factory{
		clients: make(map[string]*mongo.Client),
		configs: make(map[string]ClientOptions),
		logger:  logger,
	}
}

// Register 注册 MongoDB 客户端。连接是惰性的，PingOnStart 时立即检查连通性
func (f *Factory) Register(ctx context.Context, opts ClientOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("mongo client '%s' already registered", opts.Name)
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Username != "" || opts.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
		clientOpts.SetServerSelectionTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return fmt.Errorf("failed to create mongo client '%s': %w", opts.Name, err)
	}

	if opts.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return fmt.Errorf("failed to connect to mongo '%s': %w", opts.Name, err)
		}
	}

	f.clients[opts.Name] = client
	f.configs[opts.Name] = opts
	f.names = append(f.names, opts.Name)

	f.logger.Info("Mongo client registered", logging.Field{Key: "name", Value: opts.Name})
	return nil
}

// Get 获取指定名称的客户端
func (f *Factory) Get(name string) (*mongo.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	return client, nil
}

// Database 返回命名客户端配置的默认数据库
func (f *Factory) Database(name string) (*mongo.Database, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongo client '%s' not found", name)
	}
	db := f.configs[name].Database
	if db == "" {
		return nil, fmt.Errorf("mongo client '%s' has no default database", name)
	}
	return client.Database(db), nil
}

// Names 按注册顺序返回客户端名称
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.names...)
}

// Each 按注册顺序遍历所有客户端
func (f *Factory) Each(fn func(name string, client *mongo.Client)) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, name := range f.names {
		fn(name, f.clients[name])
	}
}

// Close 断开所有客户端
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, name := range f.names {
		ctx, cancel := context.WithTimeout(context.Background(), f.configs[name].Timeout)
		if err := f.clients[name].Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect mongo client '%s': %w", name, err))
		}
		cancel()
	}
	if len(f.names) > 0 {
		f.logger.Info("Mongo clients closed", logging.Field{Key: "count", Value: len(f.names)})
	}

	f.clients = make(map[string]*mongo.Client)
	f.configs = make(map[string]ClientOptions)
	f.names = nil
	return errors.Join(errs...)
}
