// Package modkit 提供模块化应用的入口。
//
// 应用由一棵模块树组成：每个模块声明自己的提供者、控制器、导入的子模块和导出的令牌，
// 框架负责搭建模块树、执行生命周期钩子并在退出时优雅关闭。
//
//	func main() {
//		if err := modkit.Run(AppModule, web.New(web.WithPort(8080))); err != nil {
//			log.Fatal(err)
//		}
//	}
package modkit

import (
	"context"

	"github.com/gocrud/modkit/core"
)

// Create 创建应用并完成初始化（搭建模块树并执行 bootstrap），但不启动托管服务。
// 常用于测试或需要自行控制 Start/Stop 的场景。
func Create(ctx context.Context, root *core.ModuleDef, opts ...core.Option) (*core.Application, error) {
	app, err := core.New(root, opts...)
	if err != nil {
		return nil, err
	}
	if err := app.Init(ctx); err != nil {
		return nil, err
	}
	return app, nil
}
