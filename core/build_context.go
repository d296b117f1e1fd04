package core

import (
	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/hosting"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// Configurator 配置器函数类型，可以注册 Bean、初始化器和托管服务
type Configurator func(ctx *BuildContext) error

// BuildContext 构建上下文，提供容器、配置和日志
type BuildContext struct {
	container      ioc.Container
	configuration  config.Configuration
	logger         logging.Logger
	loggerFactory  logging.LoggerFactory
	environment    Environment
	hostedServices []hosting.HostedService
}

// Container 底层容器，可直接用于 ioc.Register[T](ctx.Container(), ...)
func (c *BuildContext) Container() ioc.Container {
	return c.container
}

// Configuration 应用配置
func (c *BuildContext) Configuration() config.Configuration {
	return c.configuration
}

// Logger 应用日志
func (c *BuildContext) Logger() logging.Logger {
	return c.logger
}

// CreateLogger 创建指定分类的日志
func (c *BuildContext) CreateLogger(category string) logging.Logger {
	return c.loggerFactory.CreateLogger(category)
}

// Environment 运行环境
func (c *BuildContext) Environment() Environment {
	return c.environment
}

// AddInitializer 添加容器初始化器，在 Build 的 Refresh 中执行
func (c *BuildContext) AddInitializer(init ioc.Initializer) {
	c.container.AddInitializer(init)
}

// AddHostedService 添加不经过容器的托管服务
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.hostedServices = append(c.hostedServices, service)
}
