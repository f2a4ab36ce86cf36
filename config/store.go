package config

import (
	"strings"
	"sync"
	"sync/atomic"
)

// ValueStore 以原子指针保存整份配置数据，读取无锁，重新加载时整体替换
type ValueStore struct {
	data atomic.Pointer[map[string]any]
}

// NewValueStore 创建空的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.Store(map[string]any{})
	return s
}

// Load 返回当前配置快照，调用方不得修改
func (s *ValueStore) Load() map[string]any {
	if p := s.data.Load(); p != nil {
		return *p
	}
	return nil
}

// Store 原子替换配置数据
func (s *ValueStore) Store(data map[string]any) {
	s.data.Store(&data)
}

// PathCache 缓存配置路径的分段结果
type PathCache struct {
	cache sync.Map
}

// GetPathSegments 拆分 "a:b.c" 形式的路径
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == ':' || r == '.' })
	c.cache.Store(path, parts)
	return parts
}

var globalPathCache = &PathCache{}
