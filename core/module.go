package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// Module 是搭建完成（或正在搭建）的模块节点。
//
// 令牌按委托链解析：本地 Registry → 子模块导出 → 从父模块继承的令牌。
// 搭建期间写入的字段在 READY 之后不再变化，因此解析无需加锁。
type Module struct {
	def    *ModuleDef
	name   string
	status Status
	parent *Module

	registry          *di.Registry
	imports           []*Module
	providers         []di.Provider
	controllers       []Controller
	exports           []di.InjectionToken
	importedProviders map[di.InjectionToken]*Module
	inherited         map[di.InjectionToken]struct{}
	inheritedOrder    []di.InjectionToken
	hooks             any

	logger logging.Logger
}

func newModule(def *ModuleDef, logger logging.Logger) *Module {
	m := &Module{
		def:               def,
		name:              def.name,
		registry:          di.NewRegistry(def.name),
		importedProviders: make(map[di.InjectionToken]*Module),
		inherited:         make(map[di.InjectionToken]struct{}),
		logger:            logger,
	}
	m.registry.SetOwner(m)
	return m
}

// Name 返回模块名称。
func (m *Module) Name() string {
	return m.name
}

// Status 返回模块状态。
func (m *Module) Status() Status {
	return m.status
}

// Parent 返回父模块，根模块返回 nil。
func (m *Module) Parent() *Module {
	return m.parent
}

// Imports 返回已搭建的子模块。
func (m *Module) Imports() []*Module {
	return append([]*Module(nil), m.imports...)
}

// Exports 返回模块导出的令牌。
func (m *Module) Exports() []di.InjectionToken {
	return append([]di.InjectionToken(nil), m.exports...)
}

// Registry 返回模块私有的 Registry。
func (m *Module) Registry() *di.Registry {
	return m.registry
}

// Logger 返回模块使用的日志记录器。
func (m *Module) Logger() logging.Logger {
	return m.logger
}

// Resolve 解析令牌，scope 为当前请求的作用域（可为 nil）。
func (m *Module) Resolve(ctx context.Context, token di.InjectionToken, scope *di.Scope) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.registry.Has(token) {
		return m.registry.Resolve(ctx, token, scope)
	}
	if child := m.exporter(token); child != nil {
		return child.Resolve(ctx, token, scope)
	}
	if m.inherits(token) {
		return m.parent.Resolve(ctx, token, scope)
	}
	return nil, &di.UnresolvedTokenError{Token: token, Module: m.name}
}

// CanProvide 判断令牌是否可以从本模块解析。
func (m *Module) CanProvide(token di.InjectionToken) bool {
	return m.registry.Has(token) || m.exporter(token) != nil || m.inherits(token)
}

func (m *Module) exporter(token di.InjectionToken) *Module {
	if !comparableToken(token) {
		return nil
	}
	return m.importedProviders[token]
}

func (m *Module) inherits(token di.InjectionToken) bool {
	if m.parent == nil || !comparableToken(token) {
		return false
	}
	_, ok := m.inherited[token]
	return ok
}

// Provides 返回本模块可解析的全部令牌：本地、子模块导出、父模块继承，去重后按此顺序排列。
func (m *Module) Provides() []di.InjectionToken {
	seen := make(map[di.InjectionToken]struct{})
	var tokens []di.InjectionToken
	add := func(t di.InjectionToken) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}

	for _, t := range m.registry.Tokens() {
		add(t)
	}
	for _, child := range m.imports {
		for _, t := range child.exports {
			add(t)
		}
	}
	for _, t := range m.inheritedOrder {
		add(t)
	}
	return tokens
}

// inheritable 返回子模块可以继承的令牌：本地注册的令牌与本模块继承的令牌。
func (m *Module) inheritable() []di.InjectionToken {
	seen := make(map[di.InjectionToken]struct{})
	var tokens []di.InjectionToken
	for _, t := range append(m.registry.Tokens(), m.inheritedOrder...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens
}

// Controllers 返回本模块及所有子模块的控制器，先本模块后子模块。
func (m *Module) Controllers() []ControllerRef {
	var refs []ControllerRef
	m.walk(make(map[*Module]bool), func(mod *Module) {
		for _, c := range mod.controllers {
			refs = append(refs, ControllerRef{Module: mod, Controller: c})
		}
	})
	return refs
}

// ControllerRef 关联控制器与其所属模块。
type ControllerRef struct {
	Module     *Module
	Controller Controller
}

// Modules 以先序返回模块树中的所有节点，共享的子模块只出现一次。
func (m *Module) Modules() []*Module {
	var mods []*Module
	m.walk(make(map[*Module]bool), func(mod *Module) {
		mods = append(mods, mod)
	})
	return mods
}

func (m *Module) walk(seen map[*Module]bool, fn func(*Module)) {
	if seen[m] {
		return
	}
	seen[m] = true
	fn(m)
	for _, child := range m.imports {
		child.walk(seen, fn)
	}
}

// Tree 返回模块树的文本表示，包含提供者（○）和控制器（□）。
func (m *Module) Tree() string {
	var sb strings.Builder
	sb.WriteString(m.name + "\n")
	m.writeTree(&sb, "")
	return sb.String()
}

func (m *Module) writeTree(sb *strings.Builder, prefix string) {
	type line struct {
		label string
		child *Module
	}
	var lines []line
	for _, p := range m.providers {
		lines = append(lines, line{label: "○ " + di.TokenName(p.ProvideToken())})
	}
	for _, c := range m.controllers {
		lines = append(lines, line{label: "□ " + di.TokenName(c.Provider().ProvideToken())})
	}
	for _, child := range m.imports {
		lines = append(lines, line{label: child.name, child: child})
	}

	for i, l := range lines {
		last := i == len(lines)-1
		branch, next := "├─ ", "│  "
		if last {
			branch, next = "└─ ", "   "
		}
		sb.WriteString(prefix + branch + l.label + "\n")
		if l.child != nil {
			l.child.writeTree(sb, prefix+next)
		}
	}
}

func (m *Module) String() string {
	return fmt.Sprintf("Module(%s, %s)", m.name, m.status)
}

// comparableToken 过滤不可作为 map 键的令牌，避免 panic。
func comparableToken(token di.InjectionToken) bool {
	return di.ValidToken(token)
}

// Get 从模块解析类型 T。
func Get[T any](ctx context.Context, m *Module, scope *di.Scope) (T, error) {
	return di.Resolve[T](ctx, m, scope)
}

// GetToken 从模块解析带名称的令牌。
func GetToken[T any](ctx context.Context, m *Module, token *di.Token[T], scope *di.Scope) (T, error) {
	return di.ResolveToken(ctx, m, token, scope)
}

// GetAs 从模块解析任意令牌并断言为 T。
func GetAs[T any](ctx context.Context, m *Module, token di.InjectionToken, scope *di.Scope) (T, error) {
	return di.ResolveAs[T](ctx, m, token, scope)
}
