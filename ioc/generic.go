package ioc

import (
	"context"
	"fmt"
	"reflect"
)

// Register 注册类型 T。未指定工厂时按 `inject` 标签构造 T 本身；
// T 是接口时需要 Use[Impl]()、WithFactory 或 WithValue。
func Register[T any](b Binder, opts ...Option) error {
	def := NewDefinition("", TypeOf[T](), opts...)
	if def.Factory.Kind == FactoryConstructor && def.Factory.Func == nil {
		def.Factory = Struct[T]()
	}
	return b.Register(def)
}

// Provide 注册构造函数，类型取第一个返回值。
//
//	func NewRepo(db *gorm.DB) (*Repo, error)
func Provide(b Binder, constructor any, opts ...Option) error {
	def := NewDefinition("", nil, opts...)
	def.Factory = Constructor(constructor)
	return b.Register(def)
}

// ProvideAs 注册构造函数并以接口 T 暴露。
func ProvideAs[T any](b Binder, constructor any, opts ...Option) error {
	def := NewDefinition("", TypeOf[T](), opts...)
	def.Factory = Constructor(constructor)
	return b.Register(def)
}

// Instance 注册已创建的值。
func Instance[T any](b Binder, v T, opts ...Option) error {
	def := NewDefinition("", TypeOf[T](), opts...)
	def.Factory = Value(v)
	return b.Register(def)
}

// Intercept 注册拦截器。
func Intercept(b Binder, pc Pointcut, i Interceptor, order int) error {
	return b.AddInterceptor(Binding{Pointcut: pc, Interceptor: i, Order: order})
}

// RegisterDecorator 为接口 T 注册类型安全的装饰器。
func RegisterDecorator[T any](b Binder, d func(h *ProxyHandle) T) error {
	return b.RegisterDecorator(TypeOf[T](), func(h *ProxyHandle) any { return d(h) })
}

// Resolve 解析 T。
func Resolve[T any](f BeanFactory) (T, error) {
	return ResolveContext[T](context.Background(), f, "")
}

// ResolveNamed 解析限定名为 qualifier 的 T。
func ResolveNamed[T any](f BeanFactory, qualifier string) (T, error) {
	return ResolveContext[T](context.Background(), f, qualifier)
}

// ResolveContext 在 ctx 中解析 T，请求作用域 Bean 需要由 BeginScope 创建的 ctx。
func ResolveContext[T any](ctx context.Context, f BeanFactory, qualifier string) (T, error) {
	var zero T
	typ := TypeOf[T]()
	val, err := f.GetBeanContext(ctx, typ, qualifier)
	if err != nil {
		return zero, err
	}
	return cast[T](val, typ)
}

// ResolveAll 解析 T 的全部实例，按优先级和注册顺序。
func ResolveAll[T any](f BeanFactory) ([]T, error) {
	return ResolveAllContext[T](context.Background(), f)
}

// ResolveAllContext 同 ResolveAll。
func ResolveAllContext[T any](ctx context.Context, f BeanFactory) ([]T, error) {
	typ := TypeOf[T]()
	vals, err := f.GetBeansContext(ctx, typ)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		t, err := cast[T](v, typ)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// MustResolve 解析失败时 panic，用于启动代码。
func MustResolve[T any](f BeanFactory) T {
	v, err := Resolve[T](f)
	if err != nil {
		panic(err)
	}
	return v
}

func cast[T any](val any, typ reflect.Type) (T, error) {
	var zero T
	if val == nil {
		return zero, nil
	}
	if v, ok := val.(T); ok {
		return v, nil
	}
	return zero, fmt.Errorf("ioc: resolved value is %T, expected %v", val, typ)
}
