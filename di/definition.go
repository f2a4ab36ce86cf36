package di

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// ScopeType 定义了服务的生命周期。
type ScopeType int

const (
	// ScopeTransient 每次解析都创建新实例（默认）。
	ScopeTransient ScopeType = iota
	// ScopeScoped 每个 Scope 内只创建一次实例，不同 Scope 之间相互独立。
	// 解析时必须提供 Scope，否则返回 MissingScopeError。
	ScopeScoped
	// ScopeSingleton 在所属 Registry 的生命周期内只创建一次实例。
	ScopeSingleton
)

// String 返回生命周期名称。
func (s ScopeType) String() string {
	switch s {
	case ScopeTransient:
		return "transient"
	case ScopeScoped:
		return "scoped"
	case ScopeSingleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// ProviderType 提供者类型，定义如何提供实例
type ProviderType int

const (
	// ProviderTypeClass 类提供者，使用构造函数或结构体注入创建实例
	ProviderTypeClass ProviderType = iota
	// ProviderTypeValue 值提供者，直接使用静态值
	ProviderTypeValue
	// ProviderTypeFactory 工厂提供者，使用工厂函数创建实例
	ProviderTypeFactory
	// ProviderTypeExisting 别名提供者，转发到另一个令牌
	ProviderTypeExisting
)

// String 返回提供者类型名称。
func (p ProviderType) String() string {
	switch p {
	case ProviderTypeClass:
		return "class"
	case ProviderTypeValue:
		return "value"
	case ProviderTypeFactory:
		return "factory"
	case ProviderTypeExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// depKind 区分依赖的来源。
type depKind int

const (
	depToken depKind = iota
	depContext
	depScope
)

// dependency 是注册时预计算的一个注入点（函数参数或结构体字段）。
type dependency struct {
	Name     string // 参数位置或字段名，用于错误信息
	Index    int    // 结构体字段索引；函数参数时为参数位置
	Token    InjectionToken
	Type     reflect.Type
	Optional bool
	kind     depKind
}

// InjectionSchema 包含预计算的注入元数据。
type InjectionSchema struct {
	Fields []dependency // 用于结构体注入
	Args   []dependency // 用于函数/工厂注入
}

// ProviderInfo 描述一个已注册的提供者。
type ProviderInfo struct {
	Token InjectionToken
	Kind  ProviderType
	Scope ScopeType
	// Type 是提供者产出值的静态类型；别名提供者为 nil。
	Type reflect.Type
}

// definition 是 Registry 内部的构造策略。
type definition struct {
	token    InjectionToken
	kind     ProviderType
	scope    ScopeType
	implType reflect.Type // 结构体注入时的实现类型
	value    any          // 值提供者的实例
	invoker  *invoker     // 构造函数或工厂
	existing InjectionToken
	schema   *InjectionSchema

	// 单例缓存，由 mu 保护首次构造
	mu       sync.Mutex
	built    atomic.Bool
	instance any
}

// info 返回定义的对外描述。
func (d *definition) info() ProviderInfo {
	pi := ProviderInfo{Token: d.token, Kind: d.kind, Scope: d.scope}
	switch d.kind {
	case ProviderTypeValue:
		if d.value != nil {
			pi.Type = reflect.TypeOf(d.value)
		}
	case ProviderTypeExisting:
	default:
		if d.invoker != nil {
			pi.Type = d.invoker.out
		} else {
			pi.Type = d.implType
		}
	}
	return pi
}
