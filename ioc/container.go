package ioc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gocrud/bean/logging"
)

// Binder 注册定义和拦截器，由 Initializer 使用。
type Binder interface {
	// Register 注册 Bean 定义，名称重复返回 DuplicateDefinitionError。
	Register(def Definition) error
	// AddInterceptor 注册拦截器声明，只影响之后创建的实例。
	AddInterceptor(b Binding) error
	// RegisterDecorator 为接口类型注册代理装饰器。
	RegisterDecorator(typ reflect.Type, d Decorator) error
	// RegisterScope 注册自定义作用域。
	RegisterScope(name ScopeName, store ScopeStore) error
}

// BeanFactory 解析 Bean。
type BeanFactory interface {
	GetBean(typ reflect.Type) (any, error)
	GetNamedBean(typ reflect.Type, qualifier string) (any, error)
	GetBeanContext(ctx context.Context, typ reflect.Type, qualifier string) (any, error)
	GetBeanByName(name string) (any, error)
	GetBeans(typ reflect.Type) ([]any, error)
	GetBeansContext(ctx context.Context, typ reflect.Type) ([]any, error)
}

// Container Bean 容器。
type Container interface {
	Binder
	BeanFactory

	// AddInitializer 添加初始化器，在下一次 Refresh 时执行。
	AddInitializer(init Initializer)
	// Refresh 执行尚未执行的初始化器，校验依赖图并创建 Eager 单例。可重复调用。
	Refresh() error
	// Definitions 注册顺序的定义快照。
	Definitions() []*Definition
	// Close 按创建的逆序释放单例，之后容器不可用。
	Close(ctx context.Context) error
}

// Initializer 向容器提供定义。
type Initializer interface {
	Initialize(b Binder) error
}

// InitializerFunc 函数形式的 Initializer。
type InitializerFunc func(b Binder) error

func (f InitializerFunc) Initialize(b Binder) error { return f(b) }

// ContainerOption 配置容器。
type ContainerOption func(*container)

// WithLogger 设置容器日志。
func WithLogger(l logging.Logger) ContainerOption {
	return func(c *container) {
		if l != nil {
			c.logger = l
		}
	}
}

type ownedInstance struct {
	def *Definition
	raw any
}

func (o ownedInstance) release() error {
	if o.def.Destroy != nil {
		return o.def.Destroy(o.raw)
	}
	return dispose(o.raw)
}

type container struct {
	registry *Registry
	scopes   *ScopeManager
	chains   *chainBuilder
	proxies  *proxyFactory
	resolver *resolver
	logger   logging.Logger

	// refreshMu 串行化 Refresh；mu 保护初始化器列表和已创建单例
	refreshMu    sync.Mutex
	mu           sync.Mutex
	initializers []Initializer
	applied      int
	owned        []ownedInstance
	closed       atomic.Bool
}

// New 创建空容器。
func New(opts ...ContainerOption) Container {
	c := &container{
		registry: NewRegistry(),
		scopes:   newScopeManager(),
		chains:   &chainBuilder{},
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.proxies = newProxyFactory(c.chains)
	c.resolver = &resolver{
		registry: c.registry,
		scopes:   c.scopes,
		proxies:  c.proxies,
		logger:   c.logger,
		track:    c.track,
		cycles:   &cycleCache{graph: &graphBuilder{registry: c.registry}},
	}
	return c
}

func (c *container) Register(def Definition) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	d, err := c.registry.Register(def)
	if err != nil {
		return err
	}
	c.logger.Debug("definition registered",
		logging.F("bean", d.Name),
		logging.F("type", d.Type.String()),
		logging.F("scope", string(d.Scope)))
	return nil
}

func (c *container) AddInterceptor(b Binding) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	return c.chains.add(b)
}

func (c *container) RegisterDecorator(typ reflect.Type, d Decorator) error {
	if d == nil {
		return fmt.Errorf("ioc: nil decorator for %v", typ)
	}
	return c.proxies.register(typ, d)
}

func (c *container) RegisterScope(name ScopeName, store ScopeStore) error {
	return c.scopes.RegisterScope(name, store)
}

func (c *container) AddInitializer(init Initializer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initializers = append(c.initializers, init)
}

func (c *container) nextInitializer() (Initializer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applied >= len(c.initializers) {
		return nil, false
	}
	init := c.initializers[c.applied]
	// 失败的初始化器同样视为已执行，不会在下次 Refresh 重复注册
	c.applied++
	return init, true
}

func (c *container) Refresh() error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	applied := 0
	for {
		init, ok := c.nextInitializer()
		if !ok {
			break
		}
		if err := init.Initialize(c); err != nil {
			return fmt.Errorf("ioc: initializer %T: %w", init, err)
		}
		applied++
	}

	for _, def := range c.registry.Definitions() {
		if !c.scopes.has(def.Scope) {
			return fmt.Errorf("%w %q for %s", ErrUnknownScope, def.Scope, def.Name)
		}
	}

	// 1. 依赖图和循环检测
	order, err := (&graphBuilder{registry: c.registry}).buildOrder()
	if err != nil {
		return err
	}

	// 2. 按拓扑顺序创建 Eager 单例
	eager := 0
	for _, def := range order {
		if !def.Eager || def.Scope != ScopeSingleton {
			continue
		}
		if _, err := c.resolver.get(context.Background(), def, newResolutionContext()); err != nil {
			return err
		}
		eager++
	}

	c.logger.Info("container refreshed",
		logging.F("initializers", applied),
		logging.F("definitions", c.registry.Len()),
		logging.F("eager", eager))
	return nil
}

func (c *container) GetBean(typ reflect.Type) (any, error) {
	return c.GetBeanContext(context.Background(), typ, "")
}

func (c *container) GetNamedBean(typ reflect.Type, qualifier string) (any, error) {
	return c.GetBeanContext(context.Background(), typ, qualifier)
}

// GetBeanContext ctx 结束时放弃等待，正在进行的单例构建不受影响。
func (c *container) GetBeanContext(ctx context.Context, typ reflect.Type, qualifier string) (any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}
	return c.resolver.resolve(ctx, DependencyRequest{Type: typ, Qualifier: qualifier}, newResolutionContext())
}

func (c *container) GetBeanByName(name string) (any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}
	def, ok := c.registry.Lookup(name)
	if !ok {
		return nil, &MissingDependencyError{Request: DependencyRequest{Qualifier: name}}
	}
	return c.resolver.get(context.Background(), def, newResolutionContext())
}

func (c *container) GetBeans(typ reflect.Type) ([]any, error) {
	return c.GetBeansContext(context.Background(), typ)
}

func (c *container) GetBeansContext(ctx context.Context, typ reflect.Type) ([]any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}
	v, err := c.resolver.resolve(ctx, DependencyRequest{Type: typ, Multiplicity: Collection}, newResolutionContext())
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}

func (c *container) Definitions() []*Definition {
	return c.registry.Definitions()
}

// track 容器已关闭时，关闭前开始的构建结果直接释放
func (c *container) track(def *Definition, raw any) {
	c.mu.Lock()
	if !c.closed.Load() {
		c.owned = append(c.owned, ownedInstance{def: def, raw: raw})
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := (ownedInstance{def: def, raw: raw}).release(); err != nil {
		c.logger.Warn("dispose bean failed", logging.F("bean", def.Name), logging.F("error", err))
	}
}

func (c *container) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	owned := c.owned
	c.owned = nil
	c.mu.Unlock()

	var errs []error
	for i := len(owned) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		name := owned[i].def.Name
		if err := owned[i].release(); err != nil {
			c.logger.Warn("dispose bean failed", logging.F("bean", name), logging.F("error", err))
			errs = append(errs, fmt.Errorf("dispose %s: %w", name, err))
		}
	}
	c.scopes.singleton.reset()
	return errors.Join(errs...)
}
