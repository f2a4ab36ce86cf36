package di

import (
	"context"
	"fmt"
)

// Resolve resolves the instance registered under the type token of T.
func Resolve[T any](ctx context.Context, r Resolver, scope *Scope) (T, error) {
	return ResolveAs[T](ctx, r, TypeOf[T](), scope)
}

// ResolveToken resolves a typed named token.
func ResolveToken[T any](ctx context.Context, r Resolver, token *Token[T], scope *Scope) (T, error) {
	return ResolveAs[T](ctx, r, token, scope)
}

// ResolveAs resolves an arbitrary token and asserts the result to T.
func ResolveAs[T any](ctx context.Context, r Resolver, token InjectionToken, scope *Scope) (T, error) {
	var zero T

	val, err := r.Resolve(ctx, token, scope)
	if err != nil {
		return zero, err
	}

	if v, ok := val.(T); ok {
		return v, nil
	}
	return zero, fmt.Errorf("di: resolved value is %T, expected %v", val, TypeOf[T]())
}

// MustResolve is like Resolve but panics on error. Intended for tests and wiring code.
func MustResolve[T any](ctx context.Context, r Resolver, scope *Scope) T {
	v, err := Resolve[T](ctx, r, scope)
	if err != nil {
		panic(err)
	}
	return v
}
