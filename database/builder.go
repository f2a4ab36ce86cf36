package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gocrud/modkit/logging"
)

// DefaultName 默认实例名称
const DefaultName = "default"

// Builder 数据库配置构建器
type Builder struct {
	configs []Options
	errors  []error
}

// NewBuilder 创建构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// Add 添加数据库配置
// name: 实例名称
// dialector: GORM 驱动 (e.g. sqlite.Open(dsn))
// configure: 可选的配置函数
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*Options)) *Builder {
	for _, c := range b.configs {
		if c.Name == name {
			b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
			return b
		}
	}

	opts := NewDefaultOptions(name, dialector)
	if configure != nil {
		configure(opts)
	}
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid configuration for '%s': %w", name, err))
		return b
	}

	b.configs = append(b.configs, *opts)
	return b
}

// Names 返回已配置的实例名称
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.configs))
	for _, c := range b.configs {
		names = append(names, c.Name)
	}
	return names
}

// Default 返回默认实例名称：优先 "default"，否则为第一个配置的实例
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

// Build 构建数据库工厂，任一实例失败时关闭已打开的连接
func (b *Builder) Build(ctx context.Context, logger logging.Logger) (*Factory, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("database configuration errors: %w", errors.Join(b.errors...))
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
