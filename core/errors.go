package core

import (
	"fmt"
	"strings"
)

// NotAModuleError 表示传入的根模块、导入项或父模块不是有效的模块。
type NotAModuleError struct {
	Name string
	Hint string
}

func (e *NotAModuleError) Error() string {
	msg := fmt.Sprintf("core: %s 不是模块", e.Name)
	if e.Hint != "" {
		msg += "，" + e.Hint
	}
	return msg
}

// ImportCycleError 表示模块导入形成了环。
type ImportCycleError struct {
	Path []string
}

func (e *ImportCycleError) Error() string {
	return "core: 检测到模块循环导入: " + strings.Join(e.Path, " -> ")
}

// HookError 包装生命周期钩子返回的错误。
type HookError struct {
	Module string
	Hook   string
	Target string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("core: 模块 %s 的 %s 钩子执行失败 (%s): %v", e.Module, e.Hook, e.Target, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
