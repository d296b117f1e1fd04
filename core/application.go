package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/bean/aspects"
	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/hosting"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// Application 应用程序接口
type Application interface {
	// Run 启动托管服务，阻塞到 ctx 结束、收到退出信号、Stop 或托管服务失败，
	// 然后停止服务并关闭容器。
	Run(ctx context.Context) error
	Stop()
	Container() ioc.Container
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() Environment
}

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	environment     string
	configBuilder   *config.ConfigurationBuilder
	loggingBuilder  *logging.LoggingBuilder
	initializers    []ioc.Initializer
	configurators   []Configurator
	hostedServices  []hosting.HostedService
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		environment:     "development",
		configBuilder:   config.NewConfigurationBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		shutdownTimeout: 30 * time.Second,
	}
}

// UseEnvironment 设置环境
func (b *ApplicationBuilder) UseEnvironment(env string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// AddInitializer 添加容器初始化器
func (b *ApplicationBuilder) AddInitializer(inits ...ioc.Initializer) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initializers = append(b.initializers, inits...)
	return b
}

// ConfigureContainer 以函数形式注册 Bean
func (b *ApplicationBuilder) ConfigureContainer(configure func(b ioc.Binder) error) *ApplicationBuilder {
	return b.AddInitializer(ioc.InitializerFunc(configure))
}

// Configure 添加配置器
func (b *ApplicationBuilder) Configure(configurators ...Configurator) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configurators = append(b.configurators, configurators...)
	return b
}

// AddExtension 添加应用程序扩展
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()
	if ac, ok := ext.(BuilderConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}
	if init, ok := ext.(ioc.Initializer); ok {
		b.initializers = append(b.initializers, init)
	}
	return b
}

// AddHostedService 添加不经过容器的托管服务
func (b *ApplicationBuilder) AddHostedService(services ...hosting.HostedService) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hostedServices = append(b.hostedServices, services...)
	return b
}

// AddTask 添加一个简单的后台任务
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	return b.AddHostedService(&functionalService{task: task})
}

// functionalService 函数式托管服务
type functionalService struct {
	task func(ctx context.Context) error
}

func (f *functionalService) Start(ctx context.Context) error { return f.task(ctx) }
func (f *functionalService) Stop(context.Context) error      { return nil }

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// Build 构建配置、日志和容器，执行初始化器并刷新容器。
// 配置、日志工厂、日志和容器本身以值 Bean 注册。
func (b *ApplicationBuilder) Build() (Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg, err := b.configBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build configuration: %w", err)
	}
	if level := cfg.Get("logging:level"); level != "" {
		b.loggingBuilder.SetMinimumLevel(logging.ParseLevel(level))
	}
	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")
	logger.Info("building application", logging.F("environment", b.environment))

	container := ioc.New(ioc.WithLogger(loggerFactory.CreateLogger("ioc")))
	if err := registerCore(container, cfg, loggerFactory, logger); err != nil {
		return nil, err
	}

	ctx := &BuildContext{
		container:     container,
		configuration: cfg,
		logger:        logger,
		loggerFactory: loggerFactory,
		environment:   NewEnvironment(b.environment),
	}
	for _, configure := range b.configurators {
		if err := configure(ctx); err != nil {
			return nil, err
		}
	}
	for _, init := range b.initializers {
		container.AddInitializer(init)
	}

	if cfg.Exists("aspects") {
		init, err := aspects.FromConfig(cfg, "aspects", loggerFactory.CreateLogger("aspects"))
		if err != nil {
			return nil, err
		}
		container.AddInitializer(init)
	}

	if err := container.Refresh(); err != nil {
		return nil, fmt.Errorf("failed to refresh container: %w", err)
	}

	manager := hosting.NewHostedServiceManager(loggerFactory.CreateLogger("Hosting"))
	for _, hs := range append(b.hostedServices, ctx.hostedServices...) {
		manager.Add(hs)
	}
	if err := manager.AddFromContainer(container); err != nil {
		_ = container.Close(context.Background())
		return nil, err
	}

	return &application{
		container:       container,
		configuration:   cfg,
		logger:          logger,
		environment:     ctx.environment,
		services:        manager,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}, nil
}

func registerCore(c ioc.Container, cfg config.Configuration, factory logging.LoggerFactory, logger logging.Logger) error {
	return errors.Join(
		ioc.Instance[config.Configuration](c, cfg, ioc.NonProxyable()),
		ioc.Instance[logging.LoggerFactory](c, factory, ioc.NonProxyable()),
		ioc.Instance[logging.Logger](c, logger, ioc.NonProxyable()),
		ioc.Instance[ioc.Container](c, c, ioc.NonProxyable()),
	)
}

// application 应用程序实现
type application struct {
	container       ioc.Container
	configuration   config.Configuration
	logger          logging.Logger
	environment     Environment
	services        *hosting.HostedServiceManager
	shutdownTimeout time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	running  sync.Mutex
}

func (a *application) Run(ctx context.Context) error {
	if !a.running.TryLock() {
		return errors.New("application is already running")
	}
	defer a.running.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info("starting application", logging.F("environment", a.environment.Name()))
	errCh := a.services.StartAll(runCtx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info("received shutdown signal", logging.F("signal", sig.String()))
	case <-a.stopCh:
		a.logger.Info("application stop requested")
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	case err := <-errCh:
		a.logger.Error("hosted service failed, stopping application", logging.F("error", err))
		runErr = err
	}

	a.logger.Info("shutting down application", logging.F("timeout", a.shutdownTimeout.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer shutdownCancel()

	stopErr := a.services.StopAll(shutdownCtx)
	a.services.Wait()
	closeErr := a.container.Close(shutdownCtx)

	a.logger.Info("application stopped")
	return errors.Join(runErr, stopErr, closeErr)
}

func (a *application) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

func (a *application) Container() ioc.Container            { return a.container }
func (a *application) Configuration() config.Configuration { return a.configuration }
func (a *application) Logger() logging.Logger              { return a.logger }
func (a *application) Environment() Environment            { return a.environment }

// Environment 环境接口
type Environment interface {
	Name() string
	IsDevelopment() bool
	IsProduction() bool
	IsStaging() bool
}

// environment 环境实现
type environment struct {
	name string
}

// NewEnvironment 创建环境
func NewEnvironment(name string) Environment {
	return &environment{name: name}
}

func (e *environment) Name() string        { return e.name }
func (e *environment) IsDevelopment() bool { return e.name == "development" }
func (e *environment) IsProduction() bool  { return e.name == "production" }
func (e *environment) IsStaging() bool     { return e.name == "staging" }
