package di

import (
	"context"
	"fmt"
	"reflect"
)

var (
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	contextType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	cleanupType    = reflect.TypeOf(func() {})
	cleanupErrType = reflect.TypeOf(func() error { return nil })
	scopePtrType   = reflect.TypeOf((*Scope)(nil))
)

// invoker 封装构造函数/工厂函数的反射调用细节。
// 返回值形式在注册时检查：
//
//	func(...) T
//	func(...) (T, error)
//	func(...) (T, func())            // 带清理函数
//	func(...) (T, func() error, error)
type invoker struct {
	fn         reflect.Value
	out        reflect.Type
	cleanupIdx int // -1 表示没有清理函数
	errIdx     int // -1 表示没有 error 返回值
}

// newInvoker 检查函数签名并创建调用器。
func newInvoker(fn any) (*invoker, error) {
	fnVal := reflect.ValueOf(fn)
	if fnVal.Kind() != reflect.Func {
		return nil, fmt.Errorf("期望函数，得到 %T", fn)
	}
	if fnVal.IsNil() {
		return nil, fmt.Errorf("函数不能为 nil")
	}

	fnType := fnVal.Type()
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("不支持可变参数函数 %v", fnType)
	}

	inv := &invoker{fn: fnVal, cleanupIdx: -1, errIdx: -1}
	switch n := fnType.NumOut(); n {
	case 1:
	case 2:
		second := fnType.Out(1)
		switch {
		case second == errorType:
			inv.errIdx = 1
		case isCleanup(second):
			inv.cleanupIdx = 1
		default:
			return nil, fmt.Errorf("第二个返回值必须是 error 或清理函数，得到 %v", second)
		}
	case 3:
		if !isCleanup(fnType.Out(1)) || fnType.Out(2) != errorType {
			return nil, fmt.Errorf("三个返回值的形式必须是 (T, func() [error], error)，得到 %v", fnType)
		}
		inv.cleanupIdx, inv.errIdx = 1, 2
	default:
		return nil, fmt.Errorf("函数必须返回 1 到 3 个值，得到 %d 个", n)
	}

	inv.out = fnType.Out(0)
	if inv.out == errorType {
		return nil, fmt.Errorf("第一个返回值不能是 error")
	}
	return inv, nil
}

func isCleanup(t reflect.Type) bool {
	return t == cleanupType || t == cleanupErrType
}

// call 调用函数，返回实例以及可选的清理函数。
func (inv *invoker) call(args []reflect.Value) (any, func() error, error) {
	results := inv.fn.Call(args)

	if inv.errIdx >= 0 {
		if errVal := results[inv.errIdx]; !errVal.IsNil() {
			return nil, nil, errVal.Interface().(error)
		}
	}

	var cleanup func() error
	if inv.cleanupIdx >= 0 {
		if c := results[inv.cleanupIdx]; !c.IsNil() {
			switch f := c.Interface().(type) {
			case func():
				cleanup = func() error { f(); return nil }
			case func() error:
				cleanup = f
			}
		}
	}

	first := results[0]
	switch first.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if first.IsNil() {
			if cleanup != nil {
				_ = cleanup()
			}
			return nil, nil, fmt.Errorf("返回了 nil 实例")
		}
	}
	return first.Interface(), cleanup, nil
}
