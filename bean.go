// Package bean 组合容器、配置、日志和托管服务的应用入口。
package bean

import (
	"context"

	"github.com/gocrud/bean/configure/database"
	"github.com/gocrud/bean/configure/etcd"
	"github.com/gocrud/bean/configure/redis"
	"github.com/gocrud/bean/core"
	"github.com/gocrud/bean/schedule"
	"github.com/gocrud/bean/web"
)

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *core.ApplicationBuilder {
	return core.NewApplicationBuilder()
}

// Option 配置应用程序构建器
type Option func(b *core.ApplicationBuilder)

// WithWeb 启用 Web 主机，先读取 `web` 配置节再应用 configure
func WithWeb(configure func(*web.Builder)) Option {
	return func(b *core.ApplicationBuilder) {
		b.Configure(func(ctx *core.BuildContext) error {
			wb := web.NewBuilder().UseConfiguration(ctx.Configuration(), "web")
			if configure != nil {
				configure(wb)
			}
			ctx.AddInitializer(wb.Initializer())
			return nil
		})
	}
}

// WithSchedule 启用定时任务，读取 `schedule` 配置节
func WithSchedule(configure func(*schedule.Options)) Option {
	return func(b *core.ApplicationBuilder) {
		b.Configure(func(ctx *core.BuildContext) error {
			ctx.AddInitializer(schedule.Initializer(func(o *schedule.Options) {
				o.UseConfiguration(ctx.Configuration(), "schedule")
				if configure != nil {
					configure(o)
				}
			}))
			return nil
		})
	}
}

// WithRedis 注册 `redis` 配置节中的客户端以及 configure 添加的客户端
func WithRedis(configure func(*redis.Builder)) Option {
	return func(b *core.ApplicationBuilder) {
		b.Configure(func(ctx *core.BuildContext) error {
			rb := redis.NewBuilder().AddFromConfig(ctx.Configuration(), "redis")
			if configure != nil {
				configure(rb)
			}
			ctx.AddInitializer(rb.Initializer())
			return nil
		})
	}
}

// WithDatabase 注册 `database` 配置节中的数据库以及 configure 添加的数据库
func WithDatabase(configure func(*database.Builder)) Option {
	return func(b *core.ApplicationBuilder) {
		b.Configure(func(ctx *core.BuildContext) error {
			db := database.NewBuilder().AddFromConfig(ctx.Configuration(), "database")
			if configure != nil {
				configure(db)
			}
			ctx.AddInitializer(db.Initializer())
			return nil
		})
	}
}

// WithEtcd 注册 `etcd` 配置节中的客户端以及 configure 添加的客户端
func WithEtcd(configure func(*etcd.Builder)) Option {
	return func(b *core.ApplicationBuilder) {
		b.Configure(func(ctx *core.BuildContext) error {
			eb := etcd.NewBuilder().AddFromConfig(ctx.Configuration(), "etcd")
			if configure != nil {
				configure(eb)
			}
			ctx.AddInitializer(eb.Initializer())
			return nil
		})
	}
}

// Build 应用选项并构建应用程序
func Build(b *core.ApplicationBuilder, opts ...Option) (core.Application, error) {
	for _, opt := range opts {
		opt(b)
	}
	return b.Build()
}

// Run 构建并运行应用程序，阻塞到退出信号或 ctx 结束
func Run(ctx context.Context, b *core.ApplicationBuilder, opts ...Option) error {
	app, err := Build(b, opts...)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
