package core

import (
	"github.com/gocrud/modkit/di"
)

// Controller 是控制器声明，由 HTTP 层实现（见 web 包）。
// 控制器会作为普通提供者注册到所属模块，因此自身的依赖同样可以注入。
type Controller interface {
	// Provider 返回控制器自身的提供者，通常为瞬态。
	Provider() di.Provider
	// Setup 在所属模块搭建期间调用，用于构建路由表。
	Setup(owner *Module) error
}

// ModuleDef 是模块的声明式元数据，由 NewModule 创建。
// 同一个 ModuleDef 在一个 Graph 中只对应一个模块节点。
type ModuleDef struct {
	name        string
	imports     []*ModuleDef
	providers   []di.Provider
	controllers []Controller
	exports     []di.InjectionToken
	hooks       any
	marked      bool
}

// ModuleOption 配置模块元数据。
type ModuleOption func(*ModuleDef)

// NewModule 创建模块声明。
//
// 示例：
//
//	var TodoModule = core.NewModule("TodoModule",
//		core.Imports(DatabaseModule),
//		core.Providers(di.Class[*TodoService](NewTodoService, di.WithSingleton())),
//		core.Controllers(todoController),
//		core.Exports(di.TypeOf[*TodoService]()),
//	)
func NewModule(name string, opts ...ModuleOption) *ModuleDef {
	def := &ModuleDef{name: name, marked: true}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// Imports 声明导入的子模块。
func Imports(mods ...*ModuleDef) ModuleOption {
	return func(d *ModuleDef) {
		d.imports = append(d.imports, mods...)
	}
}

// Providers 声明模块私有的提供者。
func Providers(providers ...di.Provider) ModuleOption {
	return func(d *ModuleDef) {
		d.providers = append(d.providers, providers...)
	}
}

// Controllers 声明模块的控制器。
func Controllers(controllers ...Controller) ModuleOption {
	return func(d *ModuleDef) {
		d.controllers = append(d.controllers, controllers...)
	}
}

// Exports 声明对导入方可见的令牌。
func Exports(tokens ...di.InjectionToken) ModuleOption {
	return func(d *ModuleDef) {
		d.exports = append(d.exports, tokens...)
	}
}

// Hooks 设置模块自身的钩子对象，它可以实现 OnModuleInit、
// OnApplicationBootstrap 或 OnApplicationShutdown。
func Hooks(v any) ModuleOption {
	return func(d *ModuleDef) {
		d.hooks = v
	}
}

// Name 返回模块名称。
func (d *ModuleDef) Name() string {
	if d == nil {
		return "<nil>"
	}
	return d.name
}

// checkModule 确认 def 是通过 NewModule 创建的模块。
func checkModule(def *ModuleDef, role string) error {
	if def == nil {
		return &NotAModuleError{Name: role + " <nil>", Hint: "请使用 core.NewModule 创建模块"}
	}
	if !def.marked {
		return &NotAModuleError{Name: role + " " + def.name, Hint: "请使用 core.NewModule 创建模块，而不是直接构造 ModuleDef"}
	}
	return nil
}
