package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gocrud/modkit/logging"
)

// Factory Redis 客户端工厂，按名称管理多个客户端
type Factory struct {
	clients map[string]*goredis.Client
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
		clients: make(map[string]*goredis.Client),
		logger:  logger,
	}
}

// Register 创建并注册 Redis 客户端，启用 PingOnStart 时先校验连接
func (f *Factory) Register(ctx context.Context, opts ClientOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("redis client '%s' already registered", opts.Name)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
	})

	if opts.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis '%s': %w", opts.Name, err)
		}
	}

	f.clients[opts.Name] = client
	f.names = append(f.names, opts.Name)

	f.logger.Info("Redis client registered",
		logging.Field{Key: "name", Value: opts.Name},
		logging.Field{Key: "addr", Value: opts.Addr},
		logging.Field{Key: "db", Value: opts.DB})
	return nil
}

// Get 获取指定名称的 Redis 客户端
func (f *Factory) Get(name string) (*goredis.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("redis client '%s' not found", name)
	}
	return client, nil
}

// Names 按注册顺序返回客户端名称
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.names...)
}

// Each 按注册顺序遍历所有客户端
func (f *Factory) Each(fn func(name string, client *goredis.Client)) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, name := range f.names {
		fn(name, f.clients[name])
	}
}

// Close 关闭所有 Redis 客户端
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, name := range f.names {
		if err := f.clients[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client '%s': %w", name, err))
		}
	}
	if len(f.names) > 0 {
		f.logger.Info("Redis clients closed", logging.Field{Key: "count", Value: len(f.names)})
	}

	f.clients = make(map[string]*goredis.Client)
	f.names = nil
	return errors.Join(errs...)
}
