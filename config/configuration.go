package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Configuration 配置接口
type Configuration interface {
	// Get 获取配置值，键支持 "a:b:c" 或 "a.b.c"
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetDuration 获取时间间隔配置值，支持 "5s" 形式或整数毫秒
	GetDuration(key string) (time.Duration, error)
	// Exists 判断键是否存在
	Exists(key string) bool
	// GetSection 获取配置节，返回的节始终读取最新数据
	GetSection(key string) Configuration
	// Bind 绑定配置到结构体
	Bind(key string, target any) error
	// GetAll 获取所有配置的副本
	GetAll() map[string]any
}

// ReloadableConfiguration 支持重新加载与变更通知的配置
type ReloadableConfiguration interface {
	Configuration
	// Reload 重新加载所有配置源
	Reload() error
	// OnReload 注册重新加载后的回调
	OnReload(fn func())
	// Watch 监听支持变更通知的配置源，直到 ctx 取消
	Watch(ctx context.Context) error
}

// ErrKeyNotFound 表示配置键不存在
var ErrKeyNotFound = errors.New("config: 配置键不存在")

// ConfigurationBuilder 配置构建器，后添加的配置源覆盖先添加的
type ConfigurationBuilder struct {
	sources []ConfigurationSource
	mu      sync.RWMutex
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&JsonFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	return b.Add(&YamlFileSource{Path: path, Optional: len(optional) > 0 && optional[0]})
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	return b.Add(NewEtcdSource(opts))
}

// Build 构建配置
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	return b.BuildReloadable()
}

// BuildReloadable 构建可重新加载的配置
func (b *ConfigurationBuilder) BuildReloadable() (ReloadableConfiguration, error) {
	b.mu.RLock()
	sources := append([]ConfigurationSource(nil), b.sources...)
	b.mu.RUnlock()

	cfg := &configuration{store: NewValueStore(), sources: sources}
	if err := cfg.Reload(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configuration 是根配置，数据整体存放在 ValueStore 中，读取无锁
type configuration struct {
	store   *ValueStore
	sources []ConfigurationSource

	reloadMu  sync.Mutex
	callbacks []func()
}

func (c *configuration) Reload() error {
	c.reloadMu.Lock()
	data := make(map[string]any)
	for _, source := range c.sources {
		loaded, err := source.Load()
		if err != nil {
			c.reloadMu.Unlock()
			return fmt.Errorf("config: 加载配置源 %s 失败: %w", source.Name(), err)
		}
		mergeMaps(data, loaded)
	}
	c.store.Store(data)
	callbacks := append([]func(){}, c.callbacks...)
	c.reloadMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

func (c *configuration) OnReload(fn func()) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *configuration) Watch(ctx context.Context) error {
	var watchers []WatchableSource
	for _, source := range c.sources {
		if w, ok := source.(WatchableSource); ok {
			watchers = append(watchers, w)
		}
	}
	if len(watchers) == 0 {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, len(watchers))
	for _, w := range watchers {
		go func(w WatchableSource) {
			errCh <- w.Watch(ctx, func() { _ = c.Reload() })
		}(w)
	}

	var errs []error
	for range watchers {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *configuration) lookup(key string) any {
	return lookupPath(c.store.Load(), key)
}

func (c *configuration) Get(key string) string {
	return stringify(c.lookup(key))
}

func (c *configuration) GetWithDefault(key, defaultValue string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (c *configuration) GetInt(key string) (int, error) {
	return toInt(key, c.lookup(key))
}

func (c *configuration) GetBool(key string) (bool, error) {
	return toBool(key, c.lookup(key))
}

func (c *configuration) GetDuration(key string) (time.Duration, error) {
	return toDuration(key, c.lookup(key))
}

func (c *configuration) Exists(key string) bool {
	return c.lookup(key) != nil
}

func (c *configuration) GetSection(key string) Configuration {
	return &section{root: c, prefix: normalizeKey(key)}
}

func (c *configuration) Bind(key string, target any) error {
	return bind(key, c.lookup(key), target)
}

func (c *configuration) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.store.Load())
	return result
}

// section 是根配置的一个视图
type section struct {
	root   *configuration
	prefix string
}

func (s *section) key(key string) string {
	key = normalizeKey(key)
	if key == "" {
		return s.prefix
	}
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *section) Get(key string) string { return s.root.Get(s.key(key)) }

func (s *section) GetWithDefault(key, defaultValue string) string {
	return s.root.GetWithDefault(s.key(key), defaultValue)
}

func (s *section) GetInt(key string) (int, error) { return s.root.GetInt(s.key(key)) }

func (s *section) GetBool(key string) (bool, error) { return s.root.GetBool(s.key(key)) }

func (s *section) GetDuration(key string) (time.Duration, error) {
	return s.root.GetDuration(s.key(key))
}

func (s *section) Exists(key string) bool { return s.root.Exists(s.key(key)) }

func (s *section) GetSection(key string) Configuration {
	return &section{root: s.root, prefix: s.key(key)}
}

func (s *section) Bind(key string, target any) error { return s.root.Bind(s.key(key), target) }

func (s *section) GetAll() map[string]any {
	result := make(map[string]any)
	if m, ok := s.root.lookup(s.prefix).(map[string]any); ok {
		mergeMaps(result, m)
	}
	return result
}

func normalizeKey(key string) string {
	return strings.Trim(strings.ReplaceAll(key, ".", ":"), ":")
}

// lookupPath 按路径查找值，空路径返回整个 map
func lookupPath(data map[string]any, path string) any {
	if path == "" {
		return data
	}
	var current any = data
	for _, part := range globalPathCache.GetPathSegments(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[part]; !ok {
			return nil
		}
	}
	return current
}

func bind(key string, data, target any) error {
	if data == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	// 经由 JSON 绑定，结构体字段使用 json 标签
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("config: 序列化配置节 %s 失败: %w", key, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("config: 绑定配置节 %s 失败: %w", key, err)
	}
	return nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(key string, value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("config: 无法将 %s=%v 转换为整数", key, value)
	}
}

func toBool(key string, value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("config: 无法将 %s=%v 转换为布尔值", key, value)
	}
}

func toDuration(key string, value any) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case string:
		return time.ParseDuration(v)
	case int, int64, float64:
		ms, err := toInt(key, v)
		return time.Duration(ms) * time.Millisecond, err
	default:
		return 0, fmt.Errorf("config: 无法将 %s=%v 转换为时间间隔", key, value)
	}
}

// mergeMaps 把 src 深度合并到 dst，嵌套 map 会被复制
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dstMap = make(map[string]any, len(srcMap))
			dst[k] = dstMap
		}
		mergeMaps(dstMap, srcMap)
	}
}
