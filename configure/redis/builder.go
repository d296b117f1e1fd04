package redis

import (
	"context"
	"fmt"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
	"github.com/redis/go-redis/v9"
)

// Builder Redis 客户端配置构建器
type Builder struct {
	configs []ClientOptions
	err     error
}

// NewBuilder 创建 Redis 构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// AddClient 添加一个 Redis 客户端配置
func (b *Builder) AddClient(name string, configure func(*ClientOptions)) *Builder {
	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}
	if err := opts.Validate(); err != nil && b.err == nil {
		b.err = fmt.Errorf("invalid redis configuration for '%s': %w", name, err)
	}
	b.configs = append(b.configs, *opts)
	return b
}

// AddFromConfig 读取 section 下的客户端，每个子节一个客户端：
//
//	redis:
//	  cache: { addr: "localhost:6379", db: 1, dialTimeout: 2s }
func (b *Builder) AddFromConfig(cfg config.Configuration, section string) *Builder {
	for name := range cfg.GetSection(section).GetAll() {
		sub := cfg.GetSection(section + ":" + name)
		b.AddClient(name, func(o *ClientOptions) {
			o.Addr = sub.GetWithDefault("addr", o.Addr)
			o.Password = sub.Get("password")
			if v, err := sub.GetInt("db"); err == nil {
				o.DB = v
			}
			if v, err := sub.GetInt("poolSize"); err == nil {
				o.PoolSize = v
			}
			if v, err := sub.GetDuration("dialTimeout"); err == nil {
				o.DialTimeout = v
			}
			if v, err := sub.GetBool("ping"); err == nil {
				o.Ping = v
			}
			if v, err := sub.GetBool("eager"); err == nil {
				o.Eager = v
			}
		})
	}
	return b
}

// Initializer 把每个客户端注册为 *redis.Client 单例，限定名为客户端名称。
// 客户端在首次注入时创建，容器关闭时释放。
func (b *Builder) Initializer() ioc.Initializer {
	return ioc.InitializerFunc(func(binder ioc.Binder) error {
		if b.err != nil {
			return b.err
		}
		for _, opts := range b.configs {
			if err := binder.Register(definition(opts)); err != nil {
				return fmt.Errorf("failed to register redis client '%s': %w", opts.Name, err)
			}
		}
		return nil
	})
}

// Configure 常用写法的简写
func Configure(options func(*Builder)) ioc.Initializer {
	b := NewBuilder()
	if options != nil {
		options(b)
	}
	return b.Initializer()
}

func definition(opts ClientOptions) ioc.Definition {
	o := []ioc.Option{
		ioc.WithQualifier(opts.Name),
		ioc.WithDependencies(ioc.Need[logging.Logger]().AsOptional()),
		ioc.NonProxyable(),
	}
	if opts.Eager {
		o = append(o, ioc.Eager())
	}
	def := ioc.NewDefinition("redis."+opts.Name, ioc.TypeOf[*redis.Client](), o...)
	def.Factory = ioc.Constructor(func(logger logging.Logger) (*redis.Client, error) {
		return newClient(opts, logger)
	})
	return def
}

func newClient(opts ClientOptions, logger logging.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	client := redis.NewClient(opts.redisOptions())
	if opts.Ping {
		ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis '%s': %w", opts.Name, err)
		}
	}
	logger.Info("redis client created",
		logging.F("name", opts.Name),
		logging.F("addr", opts.Addr),
		logging.F("db", opts.DB))
	return client, nil
}
