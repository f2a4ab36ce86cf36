package schedule

// Options 调度器配置
type Options struct {
	// Location 时区设置，默认 UTC
	Location string `json:"location" yaml:"location"`
	// EnableSeconds 是否启用秒级精度（默认分钟级）
	EnableSeconds bool `json:"enableSeconds" yaml:"enableSeconds"`
	// EnableCronLogger 是否启用 cron 库的内部调度日志（默认 false）
	EnableCronLogger bool `json:"enableCronLogger" yaml:"enableCronLogger"`
	// SkipIfStillRunning 上一次执行未结束时跳过本次触发
	SkipIfStillRunning bool `json:"skipIfStillRunning" yaml:"skipIfStillRunning"`

	jobs []Job
}

// NewDefaultOptions 返回默认配置
func NewDefaultOptions() Options {
	return Options{Location: "UTC"}
}

// Option 用于配置调度模块
type Option func(*Options)

// WithSeconds 启用秒级精度，表达式需要 6 个字段
func WithSeconds() Option {
	return func(o *Options) {
		o.EnableSeconds = true
	}
}

// WithLocation 设置时区，如 "Asia/Shanghai"
func WithLocation(location string) Option {
	return func(o *Options) {
		o.Location = location
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() Option {
	return func(o *Options) {
		o.EnableCronLogger = true
	}
}

// WithSkipIfStillRunning 上一次执行未结束时跳过本次触发
func WithSkipIfStillRunning() Option {
	return func(o *Options) {
		o.SkipIfStillRunning = true
	}
}

// WithJob 添加不依赖任何提供者的静态任务
func WithJob(job Job) Option {
	return func(o *Options) {
		o.jobs = append(o.jobs, job)
	}
}
