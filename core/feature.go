package core

import (
	"reflect"
	"sync"
)

// FeatureCollection 是一个类型安全的特性集合
// 用于存放 web.Server 等由扩展创建、需要在应用外部访问的对象
type FeatureCollection struct {
	features sync.Map
}

// Set 注册一个特性
func (fc *FeatureCollection) Set(feature any) {
	typ := reflect.TypeOf(feature)
	fc.features.Store(typ, feature)
}

// Get 获取一个特性
func (fc *FeatureCollection) Get(typ reflect.Type) (any, bool) {
	return fc.features.Load(typ)
}

// GetFeature 泛型辅助函数，从 Application 获取特性
func GetFeature[T any](app *Application) (T, bool) {
	var zero T
	targetType := reflect.TypeOf((*T)(nil)).Elem()

	if val, ok := app.Features.Get(targetType); ok {
		return val.(T), true
	}
	return zero, false
}
