package modkit

import (
	"github.com/gocrud/modkit/core"
)

// Run 启动应用程序并阻塞，直到收到 SIGINT/SIGTERM 或应用内部请求退出
func Run(root *core.ModuleDef, opts ...core.Option) error {
	app, err := core.New(root, opts...)
	if err != nil {
		return err
	}
	return app.Run()
}
