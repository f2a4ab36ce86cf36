package config

import (
	"encoding/json"
	"sync"
)

// Option 静态配置选项，应用启动时加载一次，之后不再更新
type Option[T any] interface {
	Value() T
}

// OptionSnapshot 快照配置选项，在每个作用域创建时获取，同一作用域内保持不变
type OptionSnapshot[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项，总是返回最新的配置值
type OptionMonitor[T any] interface {
	Value() T
	// OnChange 注册配置变更回调
	OnChange(fn func(T))
}

// OptionsCache 绑定配置节并在配置重新加载时自动更新
type OptionsCache[T any] struct {
	config    Configuration
	section   string
	mu        sync.RWMutex
	current   T
	err       error
	listeners []func(T)
}

// NewOptionsCache 创建配置缓存。配置节不存在时使用零值，错误可通过 Err 获取。
func NewOptionsCache[T any](config Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{config: config, section: section}
	cache.reload()

	if rc, ok := config.(ReloadableConfiguration); ok {
		rc.OnReload(cache.reload)
	}
	return cache
}

func (c *OptionsCache[T]) reload() {
	var value T
	err := c.config.Bind(c.section, &value)

	c.mu.Lock()
	c.err = err
	if err == nil {
		c.current = value
	}
	listeners := append([]func(T){}, c.listeners...)
	c.mu.Unlock()

	if err == nil {
		for _, fn := range listeners {
			fn(value)
		}
	}
}

// Get 获取当前配置值
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Err 返回最近一次绑定的错误
func (c *OptionsCache[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Snapshot 返回当前配置的深拷贝
func (c *OptionsCache[T]) Snapshot() T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.Marshal(c.current)
	if err != nil {
		return c.current
	}
	var snapshot T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return c.current
	}
	return snapshot
}

func (c *OptionsCache[T]) onChange(fn func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

type option[T any] struct {
	value T
}

func (o *option[T]) Value() T {
	return o.value
}

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return &option[T]{value: value}
}

type optionSnapshot[T any] struct {
	snapshot T
}

func (o *optionSnapshot[T]) Value() T {
	return o.snapshot
}

// NewOptionSnapshot 创建快照配置选项
func NewOptionSnapshot[T any](snapshot T) OptionSnapshot[T] {
	return &optionSnapshot[T]{snapshot: snapshot}
}

type optionMonitor[T any] struct {
	cache *OptionsCache[T]
}

func (o *optionMonitor[T]) Value() T {
	return o.cache.Get()
}

func (o *optionMonitor[T]) OnChange(fn func(T)) {
	o.cache.onChange(fn)
}

// NewOptionMonitor 创建监听配置选项
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return &optionMonitor[T]{cache: cache}
}
