package etcd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Builder etcd 客户端配置构建器
type Builder struct {
	configs []ClientOptions
	names   map[string]bool
	errors  []error
}

// NewBuilder 创建 etcd 构建器
func NewBuilder() *Builder {
	return &Builder{names: make(map[string]bool)}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*ClientOptions)) *Builder {
	if b.names[name] {
		b.errors = append(b.errors, fmt.Errorf("etcd client '%s' already configured", name))
		return b
	}
	b.names[name] = true

	opts := NewDefaultOptions(name)
	if configure != nil {
		configure(opts)
	}
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
		return b
	}
	b.configs = append(b.configs, *opts)
	return b
}

// AddFromConfig 读取 section 下的客户端，endpoints 可以是列表或逗号分隔的字符串：
//
//	etcd:
//	  registry: { endpoints: ["10.0.0.1:2379", "10.0.0.2:2379"], dialTimeout: 3s }
func (b *Builder) AddFromConfig(cfg config.Configuration, section string) *Builder {
	for name := range cfg.GetSection(section).GetAll() {
		sub := cfg.GetSection(section + ":" + name)
		b.AddClient(name, func(o *ClientOptions) {
			if endpoints := readEndpoints(sub); len(endpoints) > 0 {
				o.Endpoints = endpoints
			}
			o.Username = sub.Get("username")
			o.Password = sub.Get("password")
			if v, err := sub.GetDuration("dialTimeout"); err == nil {
				o.DialTimeout = v
			}
			if v, err := sub.GetDuration("autoSyncInterval"); err == nil {
				o.AutoSyncInterval = v
			}
			if v, err := sub.GetBool("eager"); err == nil {
				o.Eager = v
			}
		})
	}
	return b
}

func readEndpoints(sub config.Configuration) []string {
	var list []string
	if err := sub.Bind("endpoints", &list); err == nil {
		return list
	}
	var out []string
	for _, e := range strings.Split(sub.Get("endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Initializer 把每个客户端注册为 *clientv3.Client 单例，限定名为客户端名称
func (b *Builder) Initializer() ioc.Initializer {
	return ioc.InitializerFunc(func(binder ioc.Binder) error {
		if len(b.errors) > 0 {
			return fmt.Errorf("etcd configuration errors: %w", errors.Join(b.errors...))
		}
		for _, opts := range b.configs {
			if err := binder.Register(definition(opts)); err != nil {
				return fmt.Errorf("failed to register etcd client '%s': %w", opts.Name, err)
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
	def := ioc.NewDefinition("etcd."+opts.Name, ioc.TypeOf[*clientv3.Client](), o...)
	def.Factory = ioc.Constructor(func(logger logging.Logger) (*clientv3.Client, error) {
		if logger == nil {
			logger = logging.NewNopLogger()
		}
		client, err := clientv3.New(opts.clientConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
		}
		logger.Info("etcd client created",
			logging.F("name", opts.Name),
			logging.F("endpoints", strings.Join(opts.Endpoints, ",")))
		return client, nil
	})
	return def
}
