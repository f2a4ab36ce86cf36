package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/modkit/logging"
)

// HostedService 托管服务接口
// 框架会在独立的 goroutine 中调用 Start，用户无需自己启动 goroutine
type HostedService interface {
	// Start 启动服务。该方法可以阻塞执行，直到 context 被取消或发生错误。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭逻辑，必须支持通过 ctx 进行超时控制。
	Stop(ctx context.Context) error
}

// NamedService 可选接口，用于在日志中标识服务
type NamedService interface {
	Name() string
}

// HostedServiceManager 托管服务管理器
type HostedServiceManager struct {
	services []HostedService
	logger   logging.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &HostedServiceManager{logger: logger}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
}

// Len 返回已添加的服务数量
func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 启动所有托管服务，每个服务在独立的 goroutine 中运行。
// 服务异常退出时错误会发送到返回的通道。
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))
	m.logger.Info(fmt.Sprintf("Starting %d hosted services", len(m.services)))

	for i, service := range m.services {
		m.wg.Add(1)
		go func(name string, svc HostedService) {
			defer m.wg.Done()

			m.logger.Debug("Starting hosted service", logging.Field{Key: "service", Value: name})
			if err := svc.Start(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					m.logger.Debug("Hosted service stopped (context done)", logging.Field{Key: "service", Value: name})
					return
				}
				m.logger.Error("Hosted service error",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err.Error()})
				select {
				case errCh <- fmt.Errorf("hosted service %s: %w", name, err):
				default:
				}
			}
		}(serviceName(i, service), service)
	}

	return errCh
}

// StopAll 倒序停止所有托管服务
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info(fmt.Sprintf("Stopping %d hosted services", len(m.services)))

	var errs []error
	for i := len(m.services) - 1; i >= 0; i-- {
		name := serviceName(i, m.services[i])
		if err := m.services[i].Stop(ctx); err != nil {
			m.logger.Error("Failed to stop hosted service",
				logging.Field{Key: "service", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, fmt.Errorf("hosted service %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Wait 等待所有服务的 Start 返回
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}

func serviceName(index int, svc HostedService) string {
	if n, ok := svc.(NamedService); ok {
		return n.Name()
	}
	return fmt.Sprintf("#%d(%T)", index+1, svc)
}

// WorkerFunc 定义简单的后台任务函数
// 这是一个阻塞函数，通过 ctx.Done() 判断退出。
type WorkerFunc func(ctx context.Context) error

// worker 将 WorkerFunc 适配为 HostedService
type worker struct {
	name string
	fn   WorkerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker 将阻塞函数包装为托管服务，Stop 时取消其 context 并等待返回。
func NewWorker(name string, fn WorkerFunc) HostedService {
	return &worker{name: name, fn: fn}
}

func (w *worker) Name() string { return w.name }

func (w *worker) Start(ctx context.Context) error {
	w.mu.Lock()
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	defer close(done)
	return w.fn(ctx)
}

func (w *worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
