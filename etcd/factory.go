package etcd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/modkit/logging"
)

// Factory etcd 客户端工厂
type Factory struct {
	clients map[string]*clientv3.Client
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
		clients: make(map[string]*clientv3.Client),
		logger:  logger,
	}
}

// Register 注册 etcd 客户端
func (f *Factory) Register(ctx context.Context, opts ClientOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("etcd client '%s' already registered", opts.Name)
	}

	config := clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
	}
	if opts.Username != "" {
		config.Username = opts.Username
		config.Password = opts.Password
	}
	if opts.AutoSyncInterval > 0 {
		config.AutoSyncInterval = opts.AutoSyncInterval
	}
	if opts.MaxCallSendMsgSize > 0 {
		config.MaxCallSendMsgSize = opts.MaxCallSendMsgSize
	}
	if opts.MaxCallRecvMsgSize > 0 {
		config.MaxCallRecvMsgSize = opts.MaxCallRecvMsgSize
	}

	client, err := clientv3.New(config)
	if err != nil {
		return fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
	}

	if opts.PingOnStart {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		if _, err := client.Status(pingCtx, opts.Endpoints[0]); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to etcd '%s': %w", opts.Name, err)
		}
	}

	f.clients[opts.Name] = client
	f.names = append(f.names, opts.Name)

	f.logger.Info("Etcd client registered",
		logging.Field{Key: "name", Value: opts.Name},
		logging.Field{Key: "endpoints", Value: opts.Endpoints})
	return nil
}

// Get 获取指定名称的客户端
func (f *Factory) Get(name string) (*clientv3.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("etcd client '%s' not found", name)
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
func (f *Factory) Each(fn func(name string, client *clientv3.Client)) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, name := range f.names {
		fn(name, f.clients[name])
	}
}

// Close 关闭所有 etcd 客户端
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, name := range f.names {
		if err := f.clients[name].Close(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("failed to close client '%s': %w", name, err))
		}
	}
	if len(f.names) > 0 {
		f.logger.Info("Etcd clients closed", logging.Field{Key: "count", Value: len(f.names)})
	}

	f.clients = make(map[string]*clientv3.Client)
	f.names = nil
	return errors.Join(errs...)
}
