package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// Graph 根据模块声明搭建模块节点树。
// 每个 ModuleDef 在同一个 Graph 中只对应一个节点；Graph 不支持并发搭建。
type Graph struct {
	nodes   map[*ModuleDef]*Module
	created []*Module
	stack   []*ModuleDef
	logger  logging.Logger
}

// NewGraph 创建模块图。logger 为 nil 时不输出日志。
func NewGraph(logger logging.Logger) *Graph {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Graph{
		nodes:  make(map[*ModuleDef]*Module),
		logger: logger,
	}
}

// Node 返回 def 对应的节点。
func (g *Graph) Node(def *ModuleDef) (*Module, bool) {
	m, ok := g.nodes[def]
	return m, ok
}

// Setup 搭建 def 对应的模块节点，parent 为 nil 表示根模块。
//
// 步骤严格按顺序执行：
//  1. 节点已就绪时直接返回（正在搭建说明出现了循环导入）
//  2. 标记为 SETTING_UP 并记录父模块
//  3. 读取声明的元数据
//  4. 注册提供者
//  5. 搭建控制器并把控制器注册为提供者
//  6. 记录父模块本地注册的令牌与父模块继承的令牌，作为继承的委托链；
//     父模块从其它子模块获得的导出不会被继承
//  7. 按声明顺序递归搭建子模块
//  8. 全部子模块就绪后再记录它们导出的令牌
//  9. 执行本模块的 OnModuleInit 钩子
//  10. 标记为 READY
func (g *Graph) Setup(ctx context.Context, def *ModuleDef, parent *Module) (m *Module, err error) {
	if err := checkModule(def, "模块"); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m, ok := g.nodes[def]
	if !ok {
		m = newModule(def, g.logger)
		g.nodes[def] = m
		g.created = append(g.created, m)
	}
	switch m.status {
	case StatusReady:
		return m, nil
	case StatusSettingUp:
		return nil, g.cycleError(def)
	}

	m.status = StatusSettingUp
	m.parent = parent
	g.stack = append(g.stack, def)
	defer func() {
		g.stack = g.stack[:len(g.stack)-1]
		if err != nil {
			delete(g.nodes, def)
		}
	}()

	m.providers = append([]di.Provider(nil), def.providers...)
	m.controllers = append([]Controller(nil), def.controllers...)
	m.exports = append([]di.InjectionToken(nil), def.exports...)
	m.hooks = def.hooks
	for _, t := range m.exports {
		if !di.ValidToken(t) {
			return nil, fmt.Errorf("core: 模块 %s 导出了无效的令牌 %v", m.name, t)
		}
	}

	for _, p := range m.providers {
		if err := m.registry.Register(p); err != nil {
			return nil, fmt.Errorf("core: 模块 %s 注册提供者失败: %w", m.name, err)
		}
	}

	for _, c := range m.controllers {
		if c == nil {
			return nil, fmt.Errorf("core: 模块 %s 声明了 nil 控制器", m.name)
		}
		if err := c.Setup(m); err != nil {
			return nil, fmt.Errorf("core: 模块 %s 搭建控制器失败: %w", m.name, err)
		}
		if err := m.registry.Register(c.Provider()); err != nil {
			return nil, fmt.Errorf("core: 模块 %s 注册控制器失败: %w", m.name, err)
		}
	}

	if parent != nil {
		for _, t := range parent.inheritable() {
			m.inherited[t] = struct{}{}
			m.inheritedOrder = append(m.inheritedOrder, t)
		}
	}

	for _, childDef := range def.imports {
		if err := checkModule(childDef, m.name+" 的导入项"); err != nil {
			return nil, err
		}
		child, err := g.Setup(ctx, childDef, m)
		if err != nil {
			return nil, err
		}
		m.imports = append(m.imports, child)
	}
	for _, child := range m.imports {
		for _, t := range child.exports {
			m.importedProviders[t] = child
		}
	}

	for _, t := range m.exports {
		if !m.CanProvide(t) {
			return nil, fmt.Errorf("core: 模块 %s 导出了未提供的令牌 %s", m.name, di.TokenName(t))
		}
	}

	if err := runModuleInit(ctx, m); err != nil {
		return nil, err
	}

	m.status = StatusReady
	g.logger.Debug("模块已就绪",
		logging.Field{Key: "module", Value: m.name},
		logging.Field{Key: "providers", Value: len(m.registry.Tokens())},
		logging.Field{Key: "imports", Value: len(m.imports)})
	return m, nil
}

// Close 按创建的逆序关闭图中建立过的所有节点的 Registry，包括搭建失败的节点。
// 用于启动失败时释放已经构造的单例。
func (g *Graph) Close() error {
	created := g.created
	g.created = nil

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		if err := created[i].registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("core: 模块 %s 清理失败: %w", created[i].name, err))
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) cycleError(def *ModuleDef) error {
	var path []string
	for i, d := range g.stack {
		if d == def {
			for _, s := range g.stack[i:] {
				path = append(path, s.name)
			}
			break
		}
	}
	return &ImportCycleError{Path: append(path, def.name)}
}
