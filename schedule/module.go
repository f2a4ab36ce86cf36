package schedule

import (
	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// NewModule 创建调度模块，导出 *Service。
//
//	var AppModule = core.NewModule("AppModule",
//		core.Imports(schedule.NewModule(schedule.WithLocation("Asia/Shanghai")), ReportModule),
//	)
func NewModule(opts ...Option) *core.ModuleDef {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return core.NewModule("ScheduleModule",
		core.Providers(
			di.Factory[*Service](func(logger logging.Logger) (*Service, error) {
				return NewService(logger.WithCategory("schedule"), o)
			}, di.WithSingleton()),
		),
		core.Exports(di.TypeOf[*Service]()),
	)
}
