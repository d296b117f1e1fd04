package ioc

import "reflect"

// Option 配置 Bean 定义。
type Option func(*Definition)

// WithName 设置定义名称（容器内唯一）。
func WithName(name string) Option {
	return func(d *Definition) {
		d.Name = name
	}
}

// WithQualifier 设置限定名，用于区分同类型的多个定义。
func WithQualifier(q string) Option {
	return func(d *Definition) {
		d.Qualifier = q
	}
}

// WithScope 设置作用域。
func WithScope(scope ScopeName) Option {
	return func(d *Definition) {
		d.Scope = scope
	}
}

// Prototype 每次解析创建新实例。
func Prototype() Option {
	return WithScope(ScopePrototype)
}

// RequestScoped 每个请求作用域一个实例。
func RequestScoped() Option {
	return WithScope(ScopeRequest)
}

// WithPriority 设置集合注入的顺序。
func WithPriority(p int) Option {
	return func(d *Definition) {
		d.Priority = p
	}
}

// WithDependencies 显式声明依赖，覆盖从工厂参数推断的结果。
func WithDependencies(deps ...DependencyRequest) Option {
	return func(d *Definition) {
		d.Dependencies = append(d.Dependencies, deps...)
	}
}

// NonProxyable 禁止代理。
func NonProxyable() Option {
	return func(d *Definition) {
		d.NonProxyable = true
	}
}

// Eager 在 Refresh 时创建单例。
func Eager() Option {
	return func(d *Definition) {
		d.Eager = true
	}
}

// OnDestroy 设置释放函数，fn 收到未代理的原始实例。
func OnDestroy(fn func(instance any) error) Option {
	return func(d *Definition) {
		d.Destroy = fn
	}
}

// Annotate 添加类型级标记。
func Annotate(annotations ...string) Option {
	return func(d *Definition) {
		d.Annotations = append(d.Annotations, annotations...)
	}
}

// AnnotateMethod 添加方法级标记。
func AnnotateMethod(method string, annotations ...string) Option {
	return func(d *Definition) {
		if d.MethodAnnotations == nil {
			d.MethodAnnotations = make(map[string][]string)
		}
		d.MethodAnnotations[method] = append(d.MethodAnnotations[method], annotations...)
	}
}

// WithFactory 使用构造函数创建实例，参数即依赖。
func WithFactory(fn any) Option {
	return func(d *Definition) {
		d.Factory = Constructor(fn)
	}
}

// WithValue 使用已创建的实例。
func WithValue(v any) Option {
	return func(d *Definition) {
		d.Factory = Value(v)
	}
}

// WithProducer 调用名为 owner 的 Bean 的方法创建实例。
func WithProducer(owner, method string) Option {
	return func(d *Definition) {
		d.Factory = Producer(owner, method)
	}
}

// Use 指定接口的实现类型，按 `inject` 标签注入字段。
func Use[T any]() Option {
	return func(d *Definition) {
		d.Factory = Struct[T]()
	}
}

// TypeOf 返回 T 的反射类型，接口类型同样适用。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
