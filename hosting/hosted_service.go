package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// HostedService 随应用启动和停止的服务。
// Start 在独立的 goroutine 中调用，允许阻塞到 ctx 结束。
type HostedService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Named 可选接口，提供日志中使用的服务名
type Named interface {
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
		logger = logging.NewNopLogger()
	}
	return &HostedServiceManager{logger: logger}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
}

// AddFromContainer 添加容器中全部 HostedService Bean，顺序同集合注入。
func (m *HostedServiceManager) AddFromContainer(f ioc.BeanFactory) error {
	services, err := ioc.ResolveAll[HostedService](f)
	if err != nil {
		return fmt.Errorf("hosting: resolve hosted services: %w", err)
	}
	for _, s := range services {
		m.Add(s)
	}
	return nil
}

// Len 已添加的服务数
func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 并发启动所有服务。返回的通道接收 Start 返回的非取消错误。
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))
	m.logger.Info("starting hosted services", logging.F("count", len(m.services)))

	for i, service := range m.services {
		m.wg.Add(1)
		go func(name string, svc HostedService) {
			defer m.wg.Done()
			m.logger.Debug("hosted service starting", logging.F("service", name))

			err := svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Debug("hosted service completed", logging.F("service", name))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("hosted service stopped", logging.F("service", name))
			default:
				m.logger.Error("hosted service failed", logging.F("service", name), logging.F("error", err))
				errCh <- fmt.Errorf("hosting: %s: %w", name, err)
			}
		}(serviceName(i, service), service)
	}
	return errCh
}

// StopAll 按添加的逆序依次停止服务，返回合并的错误。
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info("stopping hosted services", logging.F("count", len(m.services)))
	var errs []error
	for i := len(m.services) - 1; i >= 0; i-- {
		name := serviceName(i, m.services[i])
		if err := m.services[i].Stop(ctx); err != nil {
			m.logger.Error("stop hosted service failed", logging.F("service", name), logging.F("error", err))
			errs = append(errs, fmt.Errorf("hosting: stop %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Wait 等待所有 Start 返回
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}

func serviceName(i int, s HostedService) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T#%d", ioc.Unwrap(s), i)
}
