package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// Host Web 主机，作为托管服务运行
type Host struct {
	engine  *gin.Engine
	server  *http.Server
	factory ioc.BeanFactory
	logger  logging.Logger

	mapOnce sync.Once
	mapErr  error
	mu      sync.Mutex
	addr    string
}

func newHost(addr string, engine *gin.Engine, f ioc.BeanFactory, logger logging.Logger) *Host {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Host{
		engine:  engine,
		server:  &http.Server{Addr: addr, Handler: engine},
		factory: f,
		logger:  logger,
		addr:    addr,
	}
}

// Name 实现 hosting.Named
func (h *Host) Name() string { return "web" }

// Address 监听地址，Start 后为实际地址
func (h *Host) Address() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// Handler 挂载控制器后的 http.Handler
func (h *Host) Handler() (http.Handler, error) {
	if err := h.MapControllers(); err != nil {
		return nil, err
	}
	return h.engine, nil
}

// MapControllers 从容器解析全部 Controller 并注册路由，只执行一次。
func (h *Host) MapControllers() error {
	h.mapOnce.Do(func() {
		controllers, err := ioc.ResolveAll[Controller](h.factory)
		if err != nil {
			h.mapErr = fmt.Errorf("web: failed to resolve controllers: %w", err)
			return
		}
		for _, ctrl := range controllers {
			ctrl.RegisterRoutes(h.engine)
			h.logger.Debug("mapped controller routes", logging.F("controller", fmt.Sprintf("%T", ioc.Unwrap(ctrl))))
		}
	})
	return h.mapErr
}

// Start 注册路由后监听，阻塞到 Stop 或出错
func (h *Host) Start(ctx context.Context) error {
	if err := h.MapControllers(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", h.server.Addr, err)
	}
	h.mu.Lock()
	h.addr = ln.Addr().String()
	h.mu.Unlock()
	h.logger.Info("web host started", logging.F("address", ln.Addr().String()))

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("web host error", logging.F("error", err))
		return err
	}
	return nil
}

// Stop 优雅关闭
func (h *Host) Stop(ctx context.Context) error {
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("failed to shutdown web host gracefully", logging.F("error", err))
		return err
	}
	h.logger.Info("web host stopped")
	return nil
}
