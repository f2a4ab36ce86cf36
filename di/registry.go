package di

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Resolver 可以按令牌解析实例。Registry 与模块节点都实现此接口。
type Resolver interface {
	// Resolve 解析令牌；scope 为 nil 时无法解析 Scoped 令牌。
	Resolve(ctx context.Context, token InjectionToken, scope *Scope) (any, error)
	// CanProvide 判断令牌是否可解析。
	CanProvide(token InjectionToken) bool
}

// Registry 是模块私有的令牌到构造策略的映射。
//
// 构造策略的依赖通过 owner 解析，模块节点把自己设置为 owner，
// 这样依赖可以来自父模块转发或子模块导出。
type Registry struct {
	name string

	mu          sync.RWMutex
	definitions map[InjectionToken]*definition
	order       []InjectionToken
	owner       Resolver

	cleanupMu sync.Mutex
	cleanups  []func() error
}

// NewRegistry 创建一个空的 Registry，name 用于错误信息。
func NewRegistry(name string) *Registry {
	return &Registry{
		name:        name,
		definitions: make(map[InjectionToken]*definition),
	}
}

// Name 返回 Registry 的名称。
func (r *Registry) Name() string {
	return r.name
}

// SetOwner 设置解析依赖时使用的解析器。
func (r *Registry) SetOwner(owner Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = owner
}

func (r *Registry) dependencyResolver() Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.owner != nil {
		return r.owner
	}
	return r
}

// Register 注册提供者。重复注册同一令牌时后者覆盖前者，声明顺序保持首次注册的位置。
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("di: 提供者不能为 nil")
	}
	def, err := p.build()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[def.token]; !exists {
		r.order = append(r.order, def.token)
	}
	r.definitions[def.token] = def
	return nil
}

// MustRegister 注册提供者，失败时 panic。仅用于初始化阶段的编程错误。
func (r *Registry) MustRegister(providers ...Provider) {
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) lookup(token InjectionToken) *definition {
	if validateToken(token) != nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.definitions[token]
}

// Has 判断令牌是否在本 Registry 中注册。
func (r *Registry) Has(token InjectionToken) bool {
	return r.lookup(token) != nil
}

// CanProvide 等同于 Has。
func (r *Registry) CanProvide(token InjectionToken) bool {
	return r.Has(token)
}

// Tokens 按声明顺序返回所有已注册的令牌。
func (r *Registry) Tokens() []InjectionToken {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]InjectionToken, len(r.order))
	copy(tokens, r.order)
	return tokens
}

// Info 返回令牌对应提供者的描述。
func (r *Registry) Info(token InjectionToken) (ProviderInfo, bool) {
	def := r.lookup(token)
	if def == nil {
		return ProviderInfo{}, false
	}
	return def.info(), true
}

// Resolve 解析令牌。
//   - Transient：每次构造新实例
//   - Singleton：首次构造后缓存在 Registry 上，并发的首次解析只构造一次
//   - Scoped：在 scope 内缓存，scope 为 nil 时返回 MissingScopeError
func (r *Registry) Resolve(ctx context.Context, token InjectionToken, scope *Scope) (any, error) {
	def := r.lookup(token)
	if def == nil {
		return nil, &UnresolvedTokenError{Token: token, Module: r.name}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if def.kind == ProviderTypeValue {
		return def.value, nil
	}

	ctx, err := enterPath(ctx, r, token)
	if err != nil {
		return nil, err
	}

	if def.kind == ProviderTypeExisting {
		return r.dependencyResolver().Resolve(ctx, def.existing, scope)
	}

	switch def.scope {
	case ScopeSingleton:
		return r.resolveSingleton(ctx, def)
	case ScopeScoped:
		return r.resolveScoped(ctx, def, scope)
	default:
		inst, cleanup, err := r.construct(ctx, def, scope)
		if err != nil {
			return nil, err
		}
		if cleanup != nil {
			if scope == nil {
				_ = cleanup()
				return nil, fmt.Errorf("%w: %s", ErrUnscopedCleanup, TokenName(token))
			}
			scope.addCleanup(cleanup)
		}
		return inst, nil
	}
}

// resolveSingleton 单例不接收作用域，避免把请求级实例捕获进单例。
func (r *Registry) resolveSingleton(ctx context.Context, def *definition) (any, error) {
	if def.built.Load() {
		return def.instance, nil
	}

	def.mu.Lock()
	defer def.mu.Unlock()
	if def.built.Load() {
		return def.instance, nil
	}

	inst, cleanup, err := r.construct(ctx, def, nil)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		r.addCleanup(cleanup)
	}
	def.instance = inst
	def.built.Store(true)
	return inst, nil
}

func (r *Registry) resolveScoped(ctx context.Context, def *definition, scope *Scope) (any, error) {
	if scope == nil {
		return nil, &MissingScopeError{Token: def.token, Module: r.name}
	}

	entry, err := scope.entry(r, def.token)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.done {
		return entry.value, nil
	}

	inst, cleanup, err := r.construct(ctx, def, scope)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		scope.addCleanup(cleanup)
	}
	entry.value = inst
	entry.done = true
	return inst, nil
}

func (r *Registry) addCleanup(fn func() error) {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()
	r.cleanups = append(r.cleanups, fn)
}

// Close 按创建的逆序执行单例的清理函数。
func (r *Registry) Close() error {
	r.cleanupMu.Lock()
	cleanups := r.cleanups
	r.cleanups = nil
	r.cleanupMu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
