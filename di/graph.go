package di

import (
	"fmt"
	"reflect"
	"strings"
)

// analyzeFunction 计算函数参数的注入计划。
// deps 非空时按位置显式指定令牌，nil 元素表示按参数类型注入。
func analyzeFunction(fnType reflect.Type, deps []InjectionToken) ([]dependency, error) {
	if len(deps) > 0 && len(deps) != fnType.NumIn() {
		return nil, fmt.Errorf("Deps 数量 (%d) 与参数数量 (%d) 不一致", len(deps), fnType.NumIn())
	}

	args := make([]dependency, 0, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		argType := fnType.In(i)
		dep := dependency{
			Name:  fmt.Sprintf("参数 %d", i),
			Index: i,
			Type:  argType,
		}

		var explicit InjectionToken
		if len(deps) > 0 {
			explicit = deps[i]
		}

		switch {
		case explicit != nil:
			if err := validateToken(explicit); err != nil {
				return nil, fmt.Errorf("%s: %w", dep.Name, err)
			}
			dep.Token = explicit
		case argType == contextType:
			dep.kind = depContext
		case argType == scopePtrType:
			dep.kind = depScope
		default:
			dep.Token = argType
		}
		args = append(args, dep)
	}
	return args, nil
}

// analyzeStruct 计算结构体字段的注入计划。
//
// 标签格式：
//
//	`di:""`               按字段类型注入
//	`di:"name"`           按字符串令牌注入
//	`di:"?"`              可选，缺失时保持零值
//	`di:"name,optional"`  带名称的可选注入
func analyzeStruct(typ reflect.Type) ([]dependency, error) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("期望结构体类型，得到 %v", typ)
	}

	var fields []dependency
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}
		if !field.IsExported() {
			return nil, fmt.Errorf("字段 %s.%s 未导出，无法注入", typ.Name(), field.Name)
		}

		// 解析 tag: "name,option1,option2"
		parts := strings.Split(tagValue, ",")
		name := strings.TrimSpace(parts[0])
		optional := false

		if name == "?" || name == "optional" {
			name = ""
			optional = true
		}
		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			if part == "optional" || part == "?" {
				optional = true
			}
		}

		dep := dependency{
			Name:     field.Name,
			Index:    i,
			Type:     field.Type,
			Optional: optional,
		}
		switch {
		case name != "":
			dep.Token = name
		case field.Type == contextType:
			return nil, fmt.Errorf("字段 %s: 不支持注入 context.Context", field.Name)
		case field.Type == scopePtrType:
			dep.kind = depScope
		default:
			dep.Token = field.Type
		}
		fields = append(fields, dep)
	}
	return fields, nil
}
