package di

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Scope 是一次请求（或一次手动激活）的作用域上下文，缓存 Scoped 生命周期的实例。
// Scope 不属于任何模块，每次解析都需要显式传入。
type Scope struct {
	id string

	mu       sync.Mutex
	entries  map[scopeKey]*scopeEntry
	cleanups []func() error
	disposed bool
}

// scopeKey 以所属 Registry 区分同名令牌。
type scopeKey struct {
	owner *Registry
	token InjectionToken
}

type scopeEntry struct {
	mu    sync.Mutex // 用于创建此特定实例的锁
	done  bool
	value any
}

// NewScope 创建新的作用域。
func NewScope() *Scope {
	return &Scope{
		id:      uuid.NewString(),
		entries: make(map[scopeKey]*scopeEntry),
	}
}

// ID 返回作用域的唯一标识。
func (s *Scope) ID() string {
	return s.id
}

// entry 返回（必要时创建）令牌对应的缓存项。
func (s *Scope) entry(owner *Registry, token InjectionToken) (*scopeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ErrScopeDisposed
	}

	key := scopeKey{owner: owner, token: token}
	e, ok := s.entries[key]
	if !ok {
		e = &scopeEntry{}
		s.entries[key] = e
	}
	return e, nil
}

// addCleanup 登记作用域释放时执行的清理函数。
func (s *Scope) addCleanup(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// Dispose 释放作用域，按创建的逆序执行清理函数。重复调用无副作用。
func (s *Scope) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type scopeContextKey struct{}

// ContextWithScope 将作用域放入 context。
func ContextWithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// ScopeFrom 从 context 中取出作用域。
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return s, ok && s != nil
}
