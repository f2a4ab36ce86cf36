package etcd

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/modkit/logging"
)

// DefaultName 默认客户端名称
const DefaultName = "default"

// Builder etcd 客户端配置构建器
type Builder struct {
	configs []ClientOptions
	errors  []error
}

// NewBuilder 创建 etcd 构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*ClientOptions)) *Builder {
	for _, c := range b.configs {
		if c.Name == name {
			b.errors = append(b.errors, fmt.Errorf("etcd client '%s' already configured", name))
			return b
		}
	}

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
		return b
	}

	b.configs = append(b.configs, *opts)
	return b
}

// Names 返回已配置的客户端名称
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.configs))
	for _, c := range b.configs {
		names = append(names, c.Name)
	}
	return names
}

// Default 返回默认客户端名称：优先 "default"，否则为第一个配置的客户端
func (b *Builder) Default() string {
	for _, c := range b.configs {
		if c.Name == DefaultName {
			return DefaultName
		}
	}
	if len(b.configs) > 0 {
		return b.configs[0].Name
	}
	return ""
}

// Build 构建 etcd 客户端工厂，任一客户端失败时关闭已创建的客户端
func (b *Builder) Build(ctx context.Context, logger logging.Logger) (*Factory, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("etcd configuration errors: %w", errors.Join(b.errors...))
	}

	factory := NewFactory(logger)
	for _, opts := range b.configs {
		if err := factory.Register(ctx, opts); err != nil {
			_ = factory.Close()
			return nil, err
		}
	}
	return factory, nil
}
