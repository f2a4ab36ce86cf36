package di

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

type pathContextKey struct{}

// pathNode 记录当前正在构造的令牌链，用于检测循环依赖。
type pathNode struct {
	owner  *Registry
	token  InjectionToken
	parent *pathNode
}

// enterPath 将令牌压入构造链；如果令牌已在链上则返回 CircularDependencyError。
func enterPath(ctx context.Context, owner *Registry, token InjectionToken) (context.Context, error) {
	parent, _ := ctx.Value(pathContextKey{}).(*pathNode)
	for n := parent; n != nil; n = n.parent {
		if n.owner == owner && n.token == token {
			var path []InjectionToken
			for m := parent; m != nil; m = m.parent {
				path = append(path, m.token)
				if m == n {
					break
				}
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return nil, &CircularDependencyError{Path: append(path, token)}
		}
	}
	return context.WithValue(ctx, pathContextKey{}, &pathNode{owner: owner, token: token, parent: parent}), nil
}

// construct 创建 def 描述的服务的新实例。
// 它使用 Registry 的 owner 递归解析依赖项。
func (r *Registry) construct(ctx context.Context, def *definition, scope *Scope) (any, func() error, error) {
	deps := r.dependencyResolver()

	if def.invoker != nil {
		args := make([]reflect.Value, len(def.schema.Args))
		for i, dep := range def.schema.Args {
			v, err := resolveDependency(ctx, deps, dep, scope)
			if err != nil {
				return nil, nil, fmt.Errorf("di: 构造 %s 失败，%s: %w", TokenName(def.token), dep.Name, err)
			}
			args[i] = v
		}
		inst, cleanup, err := def.invoker.call(args)
		if err != nil {
			return nil, nil, fmt.Errorf("di: 构造 %s 失败: %w", TokenName(def.token), err)
		}
		return inst, cleanup, nil
	}

	inst, err := createStruct(ctx, deps, def, scope)
	if err != nil {
		return nil, nil, err
	}
	return inst, nil, nil
}

// createStruct 实例化结构体并注入标记为 `di` 的字段。
func createStruct(ctx context.Context, deps Resolver, def *definition, scope *Scope) (any, error) {
	implType := def.implType

	var val reflect.Value
	if implType.Kind() == reflect.Ptr {
		val = reflect.New(implType.Elem())
	} else {
		val = reflect.New(implType)
	}

	structVal := val.Elem()
	for _, field := range def.schema.Fields {
		v, err := resolveDependency(ctx, deps, field, scope)
		if err != nil {
			if field.Optional && isUnresolvedToken(err, field.Token) {
				continue
			}
			return nil, fmt.Errorf("di: 构造 %s 失败，字段 %s: %w", TokenName(def.token), field.Name, err)
		}
		structVal.Field(field.Index).Set(v)
	}

	if implType.Kind() == reflect.Ptr {
		return val.Interface(), nil
	}
	return structVal.Interface(), nil
}

func resolveDependency(ctx context.Context, deps Resolver, dep dependency, scope *Scope) (reflect.Value, error) {
	switch dep.kind {
	case depContext:
		return reflect.ValueOf(ctx), nil
	case depScope:
		return reflect.ValueOf(scope), nil
	}

	inst, err := deps.Resolve(ctx, dep.Token, scope)
	if err != nil {
		return reflect.Value{}, err
	}
	v := reflect.ValueOf(inst)
	if !v.IsValid() || !v.Type().AssignableTo(dep.Type) {
		return reflect.Value{}, fmt.Errorf("令牌 %s 解析为 %T，无法赋值给 %v", TokenName(dep.Token), inst, dep.Type)
	}
	return v, nil
}

// isUnresolvedToken 判断错误是否正是由 token 本身无法解析引起的。
func isUnresolvedToken(err error, token InjectionToken) bool {
	var target *UnresolvedTokenError
	return errors.As(err, &target) && target.Token == token
}
