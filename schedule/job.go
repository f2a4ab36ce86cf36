package schedule

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrJobNotFound 在按名称操作不存在的任务时返回
var ErrJobNotFound = errors.New("schedule: 任务不存在")

// Job 定时任务定义
type Job struct {
	// Name 任务名称，在调度器内唯一
	Name string
	// Spec cron 表达式，如 "*/5 * * * *"（每 5 分钟）或 "@every 1h"
	Spec string
	// MaxRepetitions 最大执行次数，达到后任务被移除；0 表示不限
	MaxRepetitions int
	// Run 任务函数，ctx 在应用关闭时取消
	Run func(ctx context.Context) error
}

func (j Job) validate() error {
	switch {
	case j.Name == "":
		return errors.New("schedule: 任务名称不能为空")
	case j.Run == nil:
		return fmt.Errorf("schedule: 任务 %s 缺少执行函数", j.Name)
	case j.MaxRepetitions < 0:
		return fmt.Errorf("schedule: 任务 %s 的最大执行次数不能为负数", j.Name)
	}
	return nil
}

// Scheduler 由声明定时任务的提供者实现。
// 调度模块在 bootstrap 时扫描根模块可解析的所有令牌，
// 类型实现了该接口的提供者会被解析并注册其任务。
//
//	type ReportScheduler struct{ svc *ReportService }
//
//	func (s *ReportScheduler) CronJobs() []schedule.Job {
//		return []schedule.Job{
//			{Name: "daily-report", Spec: "0 2 * * *", Run: s.svc.Generate},
//		}
//	}
type Scheduler interface {
	CronJobs() []Job
}

var schedulerType = reflect.TypeOf((*Scheduler)(nil)).Elem()

// EntryInfo 已注册任务的快照
type EntryInfo struct {
	Name string
	Spec string
	Runs int
	Next time.Time
	Prev time.Time
}
