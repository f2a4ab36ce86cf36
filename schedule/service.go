package schedule

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

// entry 已注册的任务
type entry struct {
	id   cron.EntryID
	job  Job
	runs atomic.Int64
}

// Service 定时任务调度器
//
// 实现 OnApplicationBootstrap：扫描 Scheduler 提供者并启动调度；
// 实现 OnApplicationShutdown：停止调度并等待执行中的任务结束。
type Service struct {
	cron   *cron.Cron
	logger logging.Logger
	static []Job

	mu      sync.Mutex
	entries map[string]*entry
	started bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService 创建调度器
func NewService(logger logging.Logger, opts Options) (*Service, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Location == "" {
		opts.Location = "UTC"
	}
	loc, err := time.LoadLocation(opts.Location)
	if err != nil {
		return nil, fmt.Errorf("schedule: 无效的时区 %q: %w", opts.Location, err)
	}

	adapter := newCronLogger(logger)
	chain := []cron.JobWrapper{cron.Recover(adapter)}
	if opts.SkipIfStillRunning {
		chain = append(chain, cron.SkipIfStillRunning(adapter))
	}

	cronOpts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithChain(chain...),
	}
	// 只在启用时添加 cron 库的日志记录器
	if opts.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(adapter))
	}
	if opts.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:    cron.New(cronOpts...),
		logger:  logger,
		static:  opts.jobs,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add 注册任务，名称重复或表达式无效时返回错误
func (s *Service) Add(job Job) error {
	if err := job.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("schedule: 任务 %s 已存在", job.Name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Spec, func() {
		_ = s.run(e)
	})
	if err != nil {
		return fmt.Errorf("schedule: 任务 %s 的表达式 %q 无效: %w", job.Name, job.Spec, err)
	}
	e.id = id
	s.entries[job.Name] = e

	s.logger.Info("Cron job registered",
		logging.Field{Key: "job", Value: job.Name},
		logging.Field{Key: "spec", Value: job.Spec})
	return nil
}

// Remove 移除任务，返回任务是否存在
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	s.logger.Info("Cron job removed", logging.Field{Key: "job", Value: name})
	return true
}

// Trigger 立即同步执行一次任务，计入执行次数
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	e, exists := s.entries[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(e)
}

// Entries 返回按名称排序的任务快照
func (s *Service) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]EntryInfo, 0, len(s.entries))
	for name, e := range s.entries {
		ce := s.cron.Entry(e.id)
		infos = append(infos, EntryInfo{
			Name: name,
			Spec: e.job.Spec,
			Runs: int(e.runs.Load()),
			Next: ce.Next,
			Prev: ce.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// run 执行任务；达到最大次数的那一次执行前先移除任务
func (s *Service) run(e *entry) error {
	n := e.runs.Add(1)
	if limit := int64(e.job.MaxRepetitions); limit > 0 {
		if n > limit {
			return nil
		}
		if n == limit {
			s.Remove(e.job.Name)
		}
	}

	start := time.Now()
	s.logger.Debug("Cron job started",
		logging.Field{Key: "job", Value: e.job.Name},
		logging.Field{Key: "run", Value: n})

	if err := e.job.Run(s.ctx); err != nil {
		s.logger.Error("Cron job failed",
			logging.Field{Key: "job", Value: e.job.Name},
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	s.logger.Debug("Cron job completed",
		logging.Field{Key: "job", Value: e.job.Name},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	return nil
}

// OnApplicationBootstrap 注册静态任务与所有 Scheduler 提供者的任务，然后启动调度
func (s *Service) OnApplicationBootstrap(ctx context.Context, app *core.Application) error {
	for _, job := range s.static {
		if err := s.Add(job); err != nil {
			return err
		}
	}

	seen := make(map[any]bool)
	for _, token := range app.Provides() {
		typ := di.TokenType(token)
		if typ == nil || !typ.Implements(schedulerType) {
			continue
		}
		v, err := app.Resolve(ctx, token, nil)
		if err != nil {
			return fmt.Errorf("schedule: 解析 %s 失败: %w", di.TokenName(token), err)
		}
		sched, ok := v.(Scheduler)
		if !ok {
			continue
		}
		// 别名令牌指向同一个实例时只注册一次
		if reflect.ValueOf(v).Comparable() {
			if seen[v] {
				continue
			}
			seen[v] = true
		}
		for _, job := range sched.CronJobs() {
			if err := s.Add(job); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
		s.logger.Info(fmt.Sprintf("Scheduler started with %d jobs", len(s.entries)))
	}
	return nil
}

// OnApplicationShutdown 停止调度，等待执行中的任务结束或 ctx 超时
func (s *Service) OnApplicationShutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.logger.Info("Scheduler stopping")
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 适配器：将框架日志接口适配到 cron 的日志接口
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: fmt.Sprint(err)})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
