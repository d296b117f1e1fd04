package core

import (
	"fmt"

	"github.com/gocrud/bean/ioc"
)

// Extension 应用程序扩展。扩展应实现 ioc.Initializer 或 BuilderConfigurator（或两者）。
type Extension interface {
	// Name 扩展名称，用于日志
	Name() string
}

// BuilderConfigurator 在 Build 阶段访问构建上下文
type BuilderConfigurator interface {
	ConfigureBuilder(ctx *BuildContext) error
}

// validateExtension 未实现任何支持的接口时 panic
func validateExtension(ext Extension) {
	_, isInitializer := ext.(ioc.Initializer)
	_, isConfigurator := ext.(BuilderConfigurator)

	if !isInitializer && !isConfigurator {
		panic(fmt.Sprintf("app: Extension '%s' does not implement any supported interfaces (ioc.Initializer, BuilderConfigurator). \n"+
			"Check if your method signatures exactly match the interface definitions.", ext.Name()))
	}
}
