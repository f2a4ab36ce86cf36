package di

import (
	"fmt"
	"reflect"
)

// InjectionToken 是可解析依赖的不透明标识。
//
// 支持三种形式：
//   - reflect.Type：按类型注入，通常由 TypeOf[T]() 得到
//   - string：字符串别名，不能为空
//   - *Token[T]：带名称的类型化令牌
//
// 令牌只在所属 Registry 内唯一，不同模块可以为同一令牌注册互不相关的提供者。
type InjectionToken = any

// Token 表示一个依赖注入的令牌，用于区分相同类型的不同依赖
//
// 使用场景：
//   - 需要注册多个相同类型但用途不同的实例（如多个数据库连接）
//   - 配置值（如字符串、整数等基本类型）
//
// 示例：
//
//	var DSN = di.NewToken[string]("db-dsn")
//
//	core.Providers(&di.ValueProvider{Provide: DSN, UseValue: "file::memory:"})
//
//	dsn, _ := core.GetToken(ctx, module, DSN, nil)
type Token[T any] struct {
	name string
	typ  reflect.Type
}

// NewToken 创建一个新的 Token
//
// 参数 name 用于标识此 Token，应该是唯一的描述性名称。
func NewToken[T any](name string) *Token[T] {
	return &Token[T]{
		name: name,
		typ:  TypeOf[T](),
	}
}

// Name 返回 Token 的名称
func (t *Token[T]) Name() string {
	return t.name
}

// Type 返回 Token 的类型
func (t *Token[T]) Type() reflect.Type {
	return t.typ
}

// String 返回 Token 的字符串表示
func (t *Token[T]) String() string {
	return fmt.Sprintf("Token[%s](%s)", t.typ, t.name)
}

// tokenInterface Token 的通用接口（用于类型判断）
type tokenInterface interface {
	Name() string
	Type() reflect.Type
	String() string
}

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
//
// 示例：
//
//	token := di.TypeOf[*UserService]()
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// TokenName 返回令牌的可读名称，用于日志与错误信息。
func TokenName(token InjectionToken) string {
	switch t := token.(type) {
	case nil:
		return "<nil>"
	case reflect.Type:
		return t.String()
	case string:
		return fmt.Sprintf("%q", t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// TokenType 返回令牌声明的值类型；字符串令牌没有声明类型，返回 nil。
func TokenType(token InjectionToken) reflect.Type {
	switch t := token.(type) {
	case reflect.Type:
		return t
	case tokenInterface:
		return t.Type()
	default:
		return nil
	}
}

// validateToken 检查令牌是否为受支持的形式。
func validateToken(token InjectionToken) error {
	switch t := token.(type) {
	case nil:
		return fmt.Errorf("di: 令牌不能为空")
	case reflect.Type:
		return nil
	case string:
		if t == "" {
			return fmt.Errorf("di: 字符串令牌不能为空")
		}
		return nil
	case tokenInterface:
		return nil
	default:
		return fmt.Errorf("di: 不支持的令牌类型 %T，请使用 reflect.Type、string 或 *di.Token[T]", token)
	}
}

// ValidToken 判断令牌是否为受支持的形式。
func ValidToken(token InjectionToken) bool {
	return validateToken(token) == nil
}
