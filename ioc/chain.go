package ioc

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Interceptor 在代理方法调用前后执行的横切逻辑。
// 每次调用 inv.Proceed() 至多一次；不调用即短路，返回值即调用结果。
type Interceptor interface {
	Invoke(inv *Invocation) (any, error)
}

// InterceptorFunc 函数形式的 Interceptor。
type InterceptorFunc func(inv *Invocation) (any, error)

func (f InterceptorFunc) Invoke(inv *Invocation) (any, error) { return f(inv) }

// Binding 拦截器声明：切点、拦截器和顺序。Order 小者在外层。
type Binding struct {
	Name        string
	Pointcut    Pointcut
	Interceptor Interceptor
	Order       int

	seq int
}

type matchKey struct {
	binding int
	bean    string
	target  reflect.Type
	method  string
}

// chainBuilder 保存拦截器声明并为每个方法计算有序链
type chainBuilder struct {
	mu       sync.RWMutex
	bindings []*Binding
	seq      int

	// 切点结果只依赖不可变输入，按 (声明, Bean, 目标类型, 方法) 缓存
	matches sync.Map
}

func (b *chainBuilder) add(binding Binding) error {
	if binding.Pointcut == nil || binding.Interceptor == nil {
		return fmt.Errorf("ioc: binding %q requires pointcut and interceptor", binding.Name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	binding.seq = b.seq
	b.bindings = append(b.bindings, &binding)
	// 按 Order 稳定排序，相同 Order 保持声明顺序
	sort.SliceStable(b.bindings, func(i, j int) bool {
		if b.bindings[i].Order != b.bindings[j].Order {
			return b.bindings[i].Order < b.bindings[j].Order
		}
		return b.bindings[i].seq < b.bindings[j].seq
	})
	return nil
}

func (b *chainBuilder) snapshot() []*Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Binding(nil), b.bindings...)
}

func (b *chainBuilder) matchesMethod(binding *Binding, m *Method) bool {
	key := matchKey{binding: binding.seq, bean: m.Bean, target: m.TargetType, method: m.Name}
	if v, ok := b.matches.Load(key); ok {
		return v.(bool)
	}
	ok := binding.Pointcut.Matches(m)
	b.matches.Store(key, ok)
	return ok
}

// build 为接口 declType 的每个方法计算拦截器链。
// 没有任何方法被匹配时返回 nil，调用方应直接使用原始实例。
func (b *chainBuilder) build(def *Definition, declType, targetType reflect.Type) (map[string][]Interceptor, map[string]*Method) {
	bindings := b.snapshot()
	if len(bindings) == 0 || declType.Kind() != reflect.Interface {
		return nil, nil
	}

	var (
		chains  map[string][]Interceptor
		methods = make(map[string]*Method, declType.NumMethod())
	)
	for i := 0; i < declType.NumMethod(); i++ {
		name := declType.Method(i).Name
		m := &Method{
			DeclaringType:   declType,
			TargetType:      targetType,
			Name:            name,
			Bean:            def.Name,
			TypeAnnotations: def.Annotations,
			Annotations:     def.MethodAnnotations[name],
		}
		methods[name] = m

		var chain []Interceptor
		for _, binding := range bindings {
			if b.matchesMethod(binding, m) {
				chain = append(chain, binding.Interceptor)
			}
		}
		if len(chain) > 0 {
			if chains == nil {
				chains = make(map[string][]Interceptor)
			}
			chains[name] = chain
		}
	}
	if chains == nil {
		return nil, nil
	}
	return chains, methods
}
