package aspects

import (
	"fmt"
	"time"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// BindingOptions 切点表达式和顺序
type BindingOptions struct {
	Pointcut string `json:"pointcut" yaml:"pointcut"`
	Order    *int   `json:"order" yaml:"order"`
}

// RateLimitOptions 进程内限流配置
type RateLimitOptions struct {
	BindingOptions
	Limit  int    `json:"limit" yaml:"limit"`
	Burst  int    `json:"burst" yaml:"burst"`
	Window string `json:"window" yaml:"window"`
}

// Options `aspects` 配置节，未配置的拦截器不启用。
//
//	aspects:
//	  recover:   { pointcut: "*" }
//	  logging:   { pointcut: "type:@Service" }
//	  rateLimit: { pointcut: "name:Create*", limit: 10, window: 1s }
type Options struct {
	Recover   *BindingOptions   `json:"recover" yaml:"recover"`
	Logging   *BindingOptions   `json:"logging" yaml:"logging"`
	RateLimit *RateLimitOptions `json:"rateLimit" yaml:"rateLimit"`
}

// FromConfig 读取 section 并返回注册对应拦截器的初始化器。切点表达式在此处解析一次。
func FromConfig(cfg config.Configuration, section string, logger logging.Logger) (ioc.Initializer, error) {
	opts, err := config.LoadOrDefault(cfg, section, Options{})
	if err != nil {
		return nil, fmt.Errorf("aspects: load %s: %w", section, err)
	}
	bindings, err := opts.Bindings(logger)
	if err != nil {
		return nil, err
	}
	return ioc.InitializerFunc(func(b ioc.Binder) error {
		for _, binding := range bindings {
			if err := b.AddInterceptor(binding); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// Bindings 按配置构造拦截器声明。
func (o Options) Bindings(logger logging.Logger) ([]ioc.Binding, error) {
	var out []ioc.Binding
	add := func(name string, bo BindingOptions, def int, i ioc.Interceptor) error {
		pc, err := ioc.ParsePointcut(bo.Pointcut)
		if err != nil {
			return fmt.Errorf("aspects: %s pointcut: %w", name, err)
		}
		order := def
		if bo.Order != nil {
			order = *bo.Order
		}
		out = append(out, Bind(name, pc, i, order))
		return nil
	}

	if o.Recover != nil {
		if err := add("recover", *o.Recover, OrderRecover, Recover(logger)); err != nil {
			return nil, err
		}
	}
	if o.Logging != nil {
		if err := add("logging", *o.Logging, OrderLogging, Logging(logger)); err != nil {
			return nil, err
		}
	}
	if rl := o.RateLimit; rl != nil {
		window := time.Second
		if rl.Window != "" {
			d, err := time.ParseDuration(rl.Window)
			if err != nil {
				return nil, fmt.Errorf("aspects: rateLimit window: %w", err)
			}
			window = d
		}
		limiter := NewLocalLimiter(rl.Limit, rl.Burst, window)
		if err := add("rateLimit", rl.BindingOptions, OrderRateLimit, RateLimit(limiter, nil)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
