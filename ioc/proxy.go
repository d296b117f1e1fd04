package ioc

import (
	"fmt"
	"reflect"
	"sync"
)

// Decorator 为接口创建代理。返回值必须实现该接口，并把每个方法转发给 h.Invoke。
//
// 典型写法：
//
//	type greeterProxy struct{ *ioc.ProxyHandle }
//
//	func (p greeterProxy) Greet(ctx context.Context, name string) (string, error) {
//		return ioc.ResultAs[string](p.Invoke("Greet", []any{ctx, name}, func(args []any) (any, error) {
//			return p.Target().(Greeter).Greet(args[0].(context.Context), args[1].(string))
//		}))
//	}
type Decorator func(h *ProxyHandle) any

// ProxyHandle 代理持有的目标实例和各方法的拦截器链。
type ProxyHandle struct {
	target  any
	def     *Definition
	chains  map[string][]Interceptor
	methods map[string]*Method
}

// Invoke 经拦截器链调用 method。没有匹配的拦截器时直接调用 call。
func (h *ProxyHandle) Invoke(method string, args []any, call func(args []any) (any, error)) (any, error) {
	chain := h.chains[method]
	if len(chain) == 0 {
		return call(args)
	}
	m, ok := h.methods[method]
	if !ok {
		return nil, &ProxyInvocationError{Method: method, Cause: fmt.Errorf("method not declared by %v", h.def.Type)}
	}
	return newInvocation(m, h.target, args, chain, call).run()
}

// Target 原始实例。
func (h *ProxyHandle) Target() any { return h.target }

// Definition 被代理 Bean 的定义。
func (h *ProxyHandle) Definition() *Definition { return h.def }

func (h *ProxyHandle) proxyHandle() *ProxyHandle { return h }

type proxied interface {
	proxyHandle() *ProxyHandle
}

// Unwrap 返回代理背后的原始实例，非代理原样返回。
func Unwrap(v any) any {
	return rawInstance(v)
}

func rawInstance(v any) any {
	if p, ok := v.(proxied); ok {
		if h := p.proxyHandle(); h != nil {
			return h.target
		}
	}
	return v
}

// ResultAs 将 Invoke 的结果转换为方法的返回类型。
// err 非空时原样返回；拦截器返回了错误类型的值时得到 ProxyInvocationError。
func ResultAs[T any](res any, err error) (T, error) {
	var zero T
	if err != nil || res == nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, &ProxyInvocationError{
			Method: TypeOf[T]().String(),
			Cause:  fmt.Errorf("result is %T, expected %v", res, TypeOf[T]()),
		}
	}
	return v, err
}

// proxyFactory 根据拦截器链为实例创建代理
type proxyFactory struct {
	mu         sync.RWMutex
	decorators map[reflect.Type]Decorator
	chains     *chainBuilder
}

func newProxyFactory(chains *chainBuilder) *proxyFactory {
	return &proxyFactory{decorators: make(map[reflect.Type]Decorator), chains: chains}
}

func (f *proxyFactory) register(typ reflect.Type, d Decorator) error {
	if typ == nil || typ.Kind() != reflect.Interface {
		return fmt.Errorf("ioc: decorators wrap interface types, got %v", typ)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decorators[typ] = d
	return nil
}

func (f *proxyFactory) decorator(typ reflect.Type) (Decorator, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.decorators[typ]
	return d, ok
}

// wrap 链为空、定义禁止代理或类型不是接口时返回原始实例。
// 已是代理的实例不再包装。
func (f *proxyFactory) wrap(def *Definition, instance any) (any, error) {
	if def.NonProxyable || def.Type.Kind() != reflect.Interface {
		return instance, nil
	}
	if _, ok := instance.(proxied); ok {
		return instance, nil
	}
	chains, methods := f.chains.build(def, def.Type, reflect.TypeOf(instance))
	if chains == nil {
		return instance, nil
	}
	d, ok := f.decorator(def.Type)
	if !ok {
		return nil, fmt.Errorf("%w for %v", ErrNoDecorator, def.Type)
	}
	p := d(&ProxyHandle{target: instance, def: def, chains: chains, methods: methods})
	if p == nil || !reflect.TypeOf(p).Implements(def.Type) {
		return nil, fmt.Errorf("ioc: decorator for %v returned %T", def.Type, p)
	}
	return p, nil
}
