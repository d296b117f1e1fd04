package ioc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ScopeStore 管理某个作用域的实例。build 必须在 Get 返回前被调用至多一次，
// 或者被并发调用者合并。
type ScopeStore interface {
	Get(ctx context.Context, name string, build func() (any, error)) (any, error)
}

// ScopeStoreFunc 函数形式的 ScopeStore。
type ScopeStoreFunc func(ctx context.Context, name string, build func() (any, error)) (any, error)

func (f ScopeStoreFunc) Get(ctx context.Context, name string, build func() (any, error)) (any, error) {
	return f(ctx, name, build)
}

// ScopeManager 按作用域名称分派到对应的存储。
type ScopeManager struct {
	mu        sync.RWMutex
	stores    map[ScopeName]ScopeStore
	singleton *singletonStore
}

func newScopeManager() *ScopeManager {
	s := &singletonStore{}
	return &ScopeManager{
		singleton: s,
		stores: map[ScopeName]ScopeStore{
			ScopeSingleton: s,
			ScopePrototype: prototypeStore{},
			ScopeRequest:   requestStore{},
		},
	}
}

// RegisterScope 注册自定义作用域，内置作用域不可替换。
func (m *ScopeManager) RegisterScope(name ScopeName, store ScopeStore) error {
	switch name {
	case ScopeSingleton, ScopePrototype:
		return fmt.Errorf("ioc: scope %q is built in", name)
	}
	if store == nil {
		return fmt.Errorf("ioc: scope %q has nil store", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[name] = store
	return nil
}

func (m *ScopeManager) has(name ScopeName) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stores[name]
	return ok
}

// GetOrCreate 从定义所属作用域获取实例，必要时调用 build。
func (m *ScopeManager) GetOrCreate(ctx context.Context, def *Definition, build func() (any, error)) (any, error) {
	m.mu.RLock()
	store, ok := m.stores[def.Scope]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownScope, def.Scope, def.Name)
	}
	return store.Get(ctx, def.Name, build)
}

// buildingKey 上下文中正在构建的单例名称
type buildingKey struct{}

// singletonStore 每个名称只写一次；写入后读取无锁。
// 同一名称的并发构建由 singleflight 合并，失败时不缓存。
type singletonStore struct {
	instances sync.Map
	group     singleflight.Group

	// waits 构建中的单例正在等待的另一个单例
	mu    sync.Mutex
	waits map[string]string
}

func (s *singletonStore) Get(ctx context.Context, name string, build func() (any, error)) (any, error) {
	if v, ok := s.instances.Load(name); ok {
		return v, nil
	}
	if waiter, ok := ctx.Value(buildingKey{}).(string); ok {
		if err := s.await(waiter, name); err != nil {
			return nil, err
		}
		defer s.done(waiter)
	}
	ch := s.group.DoChan(name, func() (any, error) {
		if v, ok := s.instances.Load(name); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		s.instances.Store(name, v)
		return v, nil
	})
	// 放弃等待不会取消构建，结果仍会写入缓存
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// await 记录 waiter 等待 name。沿等待链能回到 waiter 时两次构建会互相等待，返回环路
func (s *singletonStore) await(waiter, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waits == nil {
		s.waits = make(map[string]string)
	}
	cycle := []string{waiter}
	for n, steps := name, 0; steps <= len(s.waits); steps++ {
		if n == waiter {
			return &CircularDependencyError{Cycle: cycle}
		}
		cycle = append(cycle, n)
		next, ok := s.waits[n]
		if !ok {
			break
		}
		n = next
	}
	s.waits[waiter] = name
	return nil
}

func (s *singletonStore) done(waiter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waits, waiter)
}

func (s *singletonStore) reset() {
	s.instances.Range(func(k, _ any) bool {
		s.instances.Delete(k)
		return true
	})
}

// prototypeStore 每次调用都构建
type prototypeStore struct{}

func (prototypeStore) Get(_ context.Context, _ string, build func() (any, error)) (any, error) {
	return build()
}

type scopeKey struct{}

type scopeEntry struct {
	val atomic.Value // *boxed，未创建时为空
	mu  sync.Mutex
}

type boxed struct{ v any }

// requestScope 一个请求作用域内的实例
type requestScope struct {
	mu      sync.Mutex
	entries map[string]*scopeEntry
	owned   []any
	ended   atomic.Bool
}

func (s *requestScope) entry(name string) *scopeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		e = &scopeEntry{}
		s.entries[name] = e
	}
	return e
}

func (s *requestScope) end() error {
	if !s.ended.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	owned := s.owned
	s.owned = nil
	s.entries = make(map[string]*scopeEntry)
	s.mu.Unlock()

	var errs []error
	for i := len(owned) - 1; i >= 0; i-- {
		if err := dispose(owned[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BeginScope 开启请求作用域，返回携带作用域的上下文和结束函数。
// 结束时按创建的逆序释放实现了 io.Closer 或 Disposable 的实例。
func BeginScope(ctx context.Context) (context.Context, func()) {
	s := &requestScope{entries: make(map[string]*scopeEntry)}
	return context.WithValue(ctx, scopeKey{}, s), func() { _ = s.end() }
}

// InScope 上下文中是否有活动的请求作用域。
func InScope(ctx context.Context) bool {
	s, ok := ctx.Value(scopeKey{}).(*requestScope)
	return ok && !s.ended.Load()
}

type requestStore struct{}

func (requestStore) Get(ctx context.Context, name string, build func() (any, error)) (any, error) {
	s, ok := ctx.Value(scopeKey{}).(*requestScope)
	if !ok || s.ended.Load() {
		return nil, fmt.Errorf("%w for %s", ErrNoActiveScope, name)
	}
	e := s.entry(name)

	// 快速路径
	if b, ok := e.val.Load().(*boxed); ok {
		return b.v, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.val.Load().(*boxed); ok {
		return b.v, nil
	}

	v, err := build()
	if err != nil {
		return nil, err
	}
	e.val.Store(&boxed{v: v})

	s.mu.Lock()
	s.owned = append(s.owned, rawInstance(v))
	s.mu.Unlock()
	return v, nil
}

// Disposable 容器或作用域结束时调用 Dispose。
type Disposable interface {
	Dispose() error
}

// Initializing 工厂返回后、代理之前调用 PostConstruct，返回错误视为构建失败。
type Initializing interface {
	PostConstruct() error
}

func dispose(v any) error {
	switch x := v.(type) {
	case Disposable:
		return x.Dispose()
	case io.Closer:
		return x.Close()
	}
	return nil
}
