package ioc

import (
	"reflect"
	"sort"
	"sync"
)

// Registry 保存全部 Bean 定义。定义注册后不可变。
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []*Definition
	seq   int
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register 校验并注册定义。名称重复返回 DuplicateDefinitionError，已有定义不受影响。
func (r *Registry) Register(def Definition) (*Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := normalize(def, r.lookupLocked)
	if err != nil {
		return nil, err
	}
	if _, exists := r.defs[d.Name]; exists {
		return nil, &DuplicateDefinitionError{Name: d.Name}
	}
	r.seq++
	d.seq = r.seq
	r.defs[d.Name] = d
	r.order = append(r.order, d)
	return d, nil
}

// Lookup 按名称查找。
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(name)
}

func (r *Registry) lookupLocked(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Find 返回匹配类型和限定名的定义，按注册顺序。
// 限定名与定义的 Qualifier 或 Name 相同即匹配。
func (r *Registry) Find(typ reflect.Type, qualifier string) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Definition
	for _, d := range r.order {
		if !assignable(d.Type, typ) {
			continue
		}
		if qualifier != "" && d.Qualifier != qualifier && d.Name != qualifier {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FindAll 返回类型的全部定义，按 Priority 升序，相同时按注册顺序。
func (r *Registry) FindAll(typ reflect.Type) []*Definition {
	out := r.Find(typ, "")
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Definitions 返回注册顺序的快照。
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Definition(nil), r.order...)
}

// Len 定义数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// assignable 定义类型与请求类型相同，或请求的是定义类型实现的接口
func assignable(defType, want reflect.Type) bool {
	if defType == want {
		return true
	}
	return want.Kind() == reflect.Interface && defType.Implements(want)
}
