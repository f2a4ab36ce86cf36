package di

import (
	"fmt"
	"reflect"
)

// Provider 是提供者的统一接口，由 ClassProvider、ValueProvider、
// FactoryProvider、ExistingProvider 四种变体实现。
type Provider interface {
	// ProvideToken 返回提供者注册的令牌。
	ProvideToken() InjectionToken
	build() (*definition, error)
}

// ClassProvider 类提供者配置，按需构造实例并注入其依赖
//
// UseClass 可以是：
//   - 构造函数：参数按类型注入，或用 Deps 按位置显式指定令牌
//   - reflect.Type：结构体类型，按 `di` 标签注入字段
//   - nil：使用 Provide 本身（必须是结构体或结构体指针类型）
//
// 示例：
//
//	&di.ClassProvider{
//		Provide:  di.TypeOf[UserService](),
//		UseClass: NewUserService,
//		Scope:    di.ScopeSingleton,
//	}
type ClassProvider struct {
	Provide  InjectionToken
	UseClass any
	Deps     []InjectionToken
	Scope    ScopeType
}

// ValueProvider 值提供者配置，用于注册预先构建的实例
//
// 示例：
//
//	&di.ValueProvider{
//		Provide:  di.TypeOf[*Config](),
//		UseValue: &Config{Port: 8080},
//	}
type ValueProvider struct {
	Provide  InjectionToken
	UseValue any
}

// FactoryProvider 工厂提供者配置，用于通过工厂函数创建实例
//
// 工厂的参数会被递归解析；context.Context 参数接收当前解析上下文，
// *di.Scope 参数接收当前作用域。返回清理函数的工厂会在作用域释放
// 或 Registry 关闭时执行清理。
//
// 示例：
//
//	&di.FactoryProvider{
//		Provide: di.TypeOf[*sql.DB](),
//		UseFactory: func(ctx context.Context, cfg *Config) (*sql.DB, func() error, error) {
//			db, err := sql.Open("sqlite", cfg.DSN)
//			if err != nil {
//				return nil, nil, err
//			}
//			return db, db.Close, nil
//		},
//		Scope: di.ScopeSingleton,
//	}
type FactoryProvider struct {
	Provide    InjectionToken
	UseFactory any
	Deps       []InjectionToken
	Scope      ScopeType
}

// ExistingProvider 别名提供者配置，将 Provide 的解析转发到 UseExisting
//
// 示例：
//
//	&di.ExistingProvider{
//		Provide:     "logger",
//		UseExisting: di.TypeOf[logging.Logger](),
//	}
type ExistingProvider struct {
	Provide     InjectionToken
	UseExisting InjectionToken
}

func (p *ClassProvider) ProvideToken() InjectionToken    { return p.Provide }
func (p *ValueProvider) ProvideToken() InjectionToken    { return p.Provide }
func (p *FactoryProvider) ProvideToken() InjectionToken  { return p.Provide }
func (p *ExistingProvider) ProvideToken() InjectionToken { return p.Provide }

func (p *ClassProvider) build() (*definition, error) {
	if err := validateToken(p.Provide); err != nil {
		return nil, err
	}
	if err := validateScope(p.Scope); err != nil {
		return nil, err
	}

	def := &definition{token: p.Provide, kind: ProviderTypeClass, scope: p.Scope}

	switch use := p.UseClass.(type) {
	case nil:
		typ := TokenType(p.Provide)
		if typ == nil {
			return nil, fmt.Errorf("di: 字符串令牌 %s 必须指定 UseClass", TokenName(p.Provide))
		}
		def.implType = typ
	case reflect.Type:
		def.implType = use
	default:
		inv, err := newInvoker(use)
		if err != nil {
			return nil, fmt.Errorf("di: %s 的构造函数无效: %w", TokenName(p.Provide), err)
		}
		def.invoker = inv
	}

	def.schema = &InjectionSchema{}
	if def.invoker != nil {
		args, err := analyzeFunction(def.invoker.fn.Type(), p.Deps)
		if err != nil {
			return nil, fmt.Errorf("di: %s: %w", TokenName(p.Provide), err)
		}
		def.schema.Args = args
		if err := checkAssignable(p.Provide, def.invoker.out); err != nil {
			return nil, err
		}
		return def, nil
	}

	if len(p.Deps) > 0 {
		return nil, fmt.Errorf("di: %s: 结构体注入不支持 Deps，请使用 `di` 标签", TokenName(p.Provide))
	}
	fields, err := analyzeStruct(def.implType)
	if err != nil {
		return nil, fmt.Errorf("di: %s: %w", TokenName(p.Provide), err)
	}
	def.schema.Fields = fields
	if err := checkAssignable(p.Provide, def.implType); err != nil {
		return nil, err
	}
	return def, nil
}

func (p *ValueProvider) build() (*definition, error) {
	if err := validateToken(p.Provide); err != nil {
		return nil, err
	}
	if p.UseValue == nil {
		return nil, fmt.Errorf("di: %s 的 UseValue 不能为 nil", TokenName(p.Provide))
	}
	if err := checkAssignable(p.Provide, reflect.TypeOf(p.UseValue)); err != nil {
		return nil, err
	}
	return &definition{
		token: p.Provide,
		kind:  ProviderTypeValue,
		scope: ScopeSingleton,
		value: p.UseValue,
	}, nil
}

func (p *FactoryProvider) build() (*definition, error) {
	if err := validateToken(p.Provide); err != nil {
		return nil, err
	}
	if err := validateScope(p.Scope); err != nil {
		return nil, err
	}
	if p.UseFactory == nil {
		return nil, fmt.Errorf("di: %s 的 UseFactory 不能为 nil", TokenName(p.Provide))
	}

	inv, err := newInvoker(p.UseFactory)
	if err != nil {
		return nil, fmt.Errorf("di: %s 的工厂函数无效: %w", TokenName(p.Provide), err)
	}
	args, err := analyzeFunction(inv.fn.Type(), p.Deps)
	if err != nil {
		return nil, fmt.Errorf("di: %s: %w", TokenName(p.Provide), err)
	}
	if err := checkAssignable(p.Provide, inv.out); err != nil {
		return nil, err
	}
	return &definition{
		token:   p.Provide,
		kind:    ProviderTypeFactory,
		scope:   p.Scope,
		invoker: inv,
		schema:  &InjectionSchema{Args: args},
	}, nil
}

func (p *ExistingProvider) build() (*definition, error) {
	if err := validateToken(p.Provide); err != nil {
		return nil, err
	}
	if err := validateToken(p.UseExisting); err != nil {
		return nil, fmt.Errorf("di: %s 的 UseExisting 无效: %w", TokenName(p.Provide), err)
	}
	if p.Provide == p.UseExisting {
		return nil, fmt.Errorf("di: %s 不能作为自身的别名", TokenName(p.Provide))
	}
	return &definition{
		token:    p.Provide,
		kind:     ProviderTypeExisting,
		scope:    ScopeTransient,
		existing: p.UseExisting,
	}, nil
}

func validateScope(s ScopeType) error {
	if s < ScopeTransient || s > ScopeSingleton {
		return fmt.Errorf("di: 未知作用域 %d", s)
	}
	return nil
}

// checkAssignable 检查产出类型能否赋值给令牌声明的类型。
// 产出类型为接口时只能在运行时判断，这里放行。
func checkAssignable(token InjectionToken, out reflect.Type) error {
	want := TokenType(token)
	if want == nil || out == nil || out.Kind() == reflect.Interface {
		return nil
	}
	if !out.AssignableTo(want) {
		return fmt.Errorf("di: %v 无法赋值给令牌 %s", out, TokenName(token))
	}
	return nil
}
