package core

import (
	"context"
	"errors"
	"reflect"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// OnModuleInit 在所属模块完成装配后、应用 bootstrap 之前调用一次。
type OnModuleInit interface {
	OnModuleInit(ctx context.Context) error
}

// OnApplicationBootstrap 在整棵模块树就绪后自底向上调用一次。
type OnApplicationBootstrap interface {
	OnApplicationBootstrap(ctx context.Context, app *Application) error
}

// OnApplicationShutdown 在应用停止时按 bootstrap 的逆序调用。
type OnApplicationShutdown interface {
	OnApplicationShutdown(ctx context.Context) error
}

var (
	moduleInitType = reflect.TypeOf((*OnModuleInit)(nil)).Elem()
	bootstrapType  = reflect.TypeOf((*OnApplicationBootstrap)(nil)).Elem()
	shutdownType   = reflect.TypeOf((*OnApplicationShutdown)(nil)).Elem()
)

// hookTarget 是一个实现了钩子的对象。
type hookTarget struct {
	name  string
	value any
}

// hookTargets 按顺序收集模块中实现了 hook 接口的对象：
// 单例与值提供者（声明顺序）→ 控制器（声明顺序）→ 模块自身。
//
// 单例在这里被实例化，因此整棵模块树在开始服务前已经完成构造。
// 控制器只在其类型实现了接口时才构造，并使用一次性的作用域。
func (m *Module) hookTargets(ctx context.Context, hook reflect.Type) ([]hookTarget, error) {
	var targets []hookTarget
	seen := make(map[di.InjectionToken]bool)

	for _, p := range m.providers {
		token := p.ProvideToken()
		if seen[token] {
			continue
		}
		seen[token] = true

		info, ok := m.registry.Info(token)
		if !ok || info.Kind == di.ProviderTypeExisting {
			continue
		}
		if info.Kind != di.ProviderTypeValue && info.Scope != di.ScopeSingleton {
			continue
		}
		inst, err := m.registry.Resolve(ctx, token, nil)
		if err != nil {
			return nil, err
		}
		if reflect.TypeOf(inst).Implements(hook) {
			targets = append(targets, hookTarget{name: di.TokenName(token), value: inst})
		}
	}

	for _, c := range m.controllers {
		token := c.Provider().ProvideToken()
		info, ok := m.registry.Info(token)
		if !ok || info.Type == nil {
			continue
		}
		if info.Type.Kind() != reflect.Interface && !info.Type.Implements(hook) {
			continue
		}
		scope := di.NewScope()
		inst, err := m.registry.Resolve(ctx, token, scope)
		_ = scope.Dispose()
		if err != nil {
			return nil, err
		}
		if reflect.TypeOf(inst).Implements(hook) {
			targets = append(targets, hookTarget{name: di.TokenName(token), value: inst})
		}
	}

	if m.hooks != nil && reflect.TypeOf(m.hooks).Implements(hook) {
		targets = append(targets, hookTarget{name: m.name, value: m.hooks})
	}
	return targets, nil
}

// runModuleInit 执行单个模块的 OnModuleInit 钩子，不包含子模块。
func runModuleInit(ctx context.Context, m *Module) error {
	targets, err := m.hookTargets(ctx, moduleInitType)
	if err != nil {
		return &HookError{Module: m.name, Hook: "OnModuleInit", Target: "resolve", Err: err}
	}
	for _, t := range targets {
		m.logger.Debug("执行 OnModuleInit",
			logging.Field{Key: "module", Value: m.name},
			logging.Field{Key: "target", Value: t.name})
		if err := t.value.(OnModuleInit).OnModuleInit(ctx); err != nil {
			return &HookError{Module: m.name, Hook: "OnModuleInit", Target: t.name, Err: err}
		}
	}
	return nil
}

// bootstrapOrder 返回自底向上的模块顺序：子模块（按导入顺序，深度优先）在前，父模块在后。
func bootstrapOrder(root *Module) []*Module {
	var order []*Module
	seen := make(map[*Module]bool)
	var visit func(*Module)
	visit = func(m *Module) {
		if seen[m] {
			return
		}
		seen[m] = true
		for _, child := range m.imports {
			visit(child)
		}
		order = append(order, m)
	}
	visit(root)
	return order
}

// runBootstrap 对整棵模块树执行 OnApplicationBootstrap 钩子，遇到错误立即返回。
func runBootstrap(ctx context.Context, root *Module, app *Application) error {
	for _, m := range bootstrapOrder(root) {
		if m.status != StatusReady {
			continue
		}
		targets, err := m.hookTargets(ctx, bootstrapType)
		if err != nil {
			return &HookError{Module: m.name, Hook: "OnApplicationBootstrap", Target: "resolve", Err: err}
		}
		for _, t := range targets {
			m.logger.Debug("执行 OnApplicationBootstrap",
				logging.Field{Key: "module", Value: m.name},
				logging.Field{Key: "target", Value: t.name})
			if err := t.value.(OnApplicationBootstrap).OnApplicationBootstrap(ctx, app); err != nil {
				return &HookError{Module: m.name, Hook: "OnApplicationBootstrap", Target: t.name, Err: err}
			}
		}
	}
	return nil
}

// runShutdown 按 bootstrap 的逆序执行 OnApplicationShutdown 钩子。
// 单个钩子失败不会中断其余钩子，所有错误合并返回。
func runShutdown(ctx context.Context, root *Module) error {
	order := bootstrapOrder(root)
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		m := order[i]
		if m.status != StatusReady {
			continue
		}
		targets, err := m.hookTargets(ctx, shutdownType)
		if err != nil {
			errs = append(errs, &HookError{Module: m.name, Hook: "OnApplicationShutdown", Target: "resolve", Err: err})
			continue
		}
		for j := len(targets) - 1; j >= 0; j-- {
			t := targets[j]
			if err := t.value.(OnApplicationShutdown).OnApplicationShutdown(ctx); err != nil {
				m.logger.Error("OnApplicationShutdown 执行失败",
					logging.Field{Key: "module", Value: m.name},
					logging.Field{Key: "target", Value: t.name},
					logging.Field{Key: "error", Value: err.Error()})
				errs = append(errs, &HookError{Module: m.name, Hook: "OnApplicationShutdown", Target: t.name, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}
