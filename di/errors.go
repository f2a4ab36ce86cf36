package di

import (
	"errors"
	"fmt"
	"strings"
)

// ErrScopeDisposed 在已释放的作用域上解析时返回。
var ErrScopeDisposed = errors.New("di: 作用域已释放")

// ErrUnscopedCleanup 在没有作用域的情况下解析带清理函数的瞬态服务时返回。
// 这类实例没有明确的释放时机，必须在作用域内解析。
var ErrUnscopedCleanup = errors.New("di: 带清理函数的瞬态服务必须在作用域内解析")

// UnresolvedTokenError 表示令牌在模块（含父模块转发与子模块导出）中无法解析。
type UnresolvedTokenError struct {
	Token  InjectionToken
	Module string
}

func (e *UnresolvedTokenError) Error() string {
	return fmt.Sprintf("di: 模块 %s 无法解析令牌 %s", e.Module, TokenName(e.Token))
}

// MissingScopeError 表示在没有作用域的情况下解析 Scoped 令牌，
// 通常说明作用域中间件没有安装。
type MissingScopeError struct {
	Token  InjectionToken
	Module string
}

func (e *MissingScopeError) Error() string {
	return fmt.Sprintf("di: 模块 %s 解析作用域服务 %s 时没有活动的作用域", e.Module, TokenName(e.Token))
}

// CircularDependencyError 表示构造过程中出现了循环依赖。
type CircularDependencyError struct {
	Path []InjectionToken
}

func (e *CircularDependencyError) Error() string {
	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = TokenName(t)
	}
	return "di: 检测到循环依赖: " + strings.Join(names, " -> ")
}

// IsUnresolved 判断错误链中是否包含 UnresolvedTokenError。
func IsUnresolved(err error) bool {
	var target *UnresolvedTokenError
	return errors.As(err, &target)
}
