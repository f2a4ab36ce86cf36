package di

// ProviderOptions 是泛型快捷构造函数的配置。
type ProviderOptions struct {
	Scope ScopeType
	Deps  []InjectionToken
	// Token 覆盖默认的类型令牌。
	Token InjectionToken
}

// Option 配置提供者。
type Option func(*ProviderOptions)

// WithScope 设置服务的生命周期范围。
func WithScope(scope ScopeType) Option {
	return func(o *ProviderOptions) {
		o.Scope = scope
	}
}

// WithSingleton 将范围设置为 Singleton。
func WithSingleton() Option {
	return WithScope(ScopeSingleton)
}

// WithTransient 将范围设置为 Transient（默认）。
func WithTransient() Option {
	return WithScope(ScopeTransient)
}

// WithScoped 将范围设置为 Scoped。
func WithScoped() Option {
	return WithScope(ScopeScoped)
}

// WithDeps 按参数位置显式指定依赖令牌，nil 表示按参数类型注入。
func WithDeps(deps ...InjectionToken) Option {
	return func(o *ProviderOptions) {
		o.Deps = deps
	}
}

// WithToken 使用指定令牌注册，替代默认的类型令牌。
func WithToken(token InjectionToken) Option {
	return func(o *ProviderOptions) {
		o.Token = token
	}
}

func applyOptions[T any](opts []Option) ProviderOptions {
	o := ProviderOptions{Token: TypeOf[T]()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Class 以类型 T 为令牌注册类提供者。ctor 为 nil 时对 T 做结构体注入。
//
// 示例：
//
//	di.Class[*UserService](NewUserService, di.WithSingleton())
func Class[T any](ctor any, opts ...Option) *ClassProvider {
	o := applyOptions[T](opts)
	return &ClassProvider{Provide: o.Token, UseClass: ctor, Deps: o.Deps, Scope: o.Scope}
}

// Value 以类型 T 为令牌注册值提供者。
func Value[T any](v T, opts ...Option) *ValueProvider {
	o := applyOptions[T](opts)
	return &ValueProvider{Provide: o.Token, UseValue: v}
}

// Factory 以类型 T 为令牌注册工厂提供者。
func Factory[T any](fn any, opts ...Option) *FactoryProvider {
	o := applyOptions[T](opts)
	return &FactoryProvider{Provide: o.Token, UseFactory: fn, Deps: o.Deps, Scope: o.Scope}
}

// Alias 注册别名提供者。
func Alias(provide, existing InjectionToken) *ExistingProvider {
	return &ExistingProvider{Provide: provide, UseExisting: existing}
}
