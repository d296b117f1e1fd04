package ioc

import (
	"context"
	"fmt"

	"github.com/gocrud/bean/logging"
)

// resolver 把依赖请求解析为实例：选择候选、检测环路、经作用域创建并代理。
type resolver struct {
	registry *Registry
	scopes   *ScopeManager
	proxies  *proxyFactory
	logger   logging.Logger

	// track 记录已创建的单例原始实例，供容器关闭时释放
	track func(def *Definition, raw any)
	// cycles 顶层解析前检查请求可达子图的静态环路
	cycles *cycleCache
}

// resolve 单值请求返回实例（可选且缺失时为 nil），集合请求返回 []any
func (r *resolver) resolve(ctx context.Context, req DependencyRequest, rc *ResolutionContext) (any, error) {
	if req.Multiplicity == Collection {
		defs := r.registry.FindAll(req.Type)
		out := make([]any, 0, len(defs))
		for _, def := range defs {
			v, err := r.get(ctx, def, rc)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	cands := r.registry.Find(req.Type, req.Qualifier)
	switch len(cands) {
	case 0:
		if req.Optional {
			return nil, nil
		}
		return nil, &MissingDependencyError{Request: req, Path: rc.Path()}
	case 1:
		return r.get(ctx, cands[0], rc)
	default:
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.Name
		}
		return nil, &AmbiguousDependencyError{Request: req, Candidates: names}
	}
}

// get 定义入栈后交给作用域，所有退出路径都会出栈
func (r *resolver) get(ctx context.Context, def *Definition, rc *ResolutionContext) (any, error) {
	if len(rc.stack) == 0 && r.cycles != nil {
		if err := r.cycles.check(def); err != nil {
			return nil, err
		}
	}
	if err := rc.push(def.Name); err != nil {
		return nil, err
	}
	defer rc.pop()

	// 构建可能在其他 goroutine 中执行，使用独立的解析上下文；
	// 调用方放弃等待时构建继续完成
	forked := rc.fork()
	buildCtx := context.WithoutCancel(ctx)
	if def.Scope == ScopeSingleton {
		buildCtx = context.WithValue(buildCtx, buildingKey{}, def.Name)
	}
	return r.scopes.GetOrCreate(ctx, def, func() (any, error) {
		return r.create(buildCtx, def, forked)
	})
}

func (r *resolver) create(ctx context.Context, def *Definition, rc *ResolutionContext) (instance any, err error) {
	defer func() {
		if p := recover(); p != nil {
			instance = nil
			err = &ConstructionError{Name: def.Name, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()

	var owner any
	if def.Factory.Kind == FactoryProducer {
		ownerDef, ok := r.registry.Lookup(def.Factory.Owner)
		if !ok {
			return nil, &MissingDependencyError{Request: DependencyRequest{Qualifier: def.Factory.Owner}, Path: rc.Path()}
		}
		if owner, err = r.get(ctx, ownerDef, rc); err != nil {
			return nil, err
		}
	}

	deps := make([]any, len(def.Dependencies))
	for i, req := range def.Dependencies {
		v, err := r.resolve(ctx, req, rc)
		if err != nil {
			return nil, err
		}
		deps[i] = v
	}

	raw, err := callFactory(def, owner, deps)
	if err != nil {
		return nil, &ConstructionError{Name: def.Name, Cause: err}
	}
	if init, ok := raw.(Initializing); ok && def.Factory.Kind != FactoryValue {
		if err := init.PostConstruct(); err != nil {
			return nil, &ConstructionError{Name: def.Name, Cause: fmt.Errorf("post construct: %w", err)}
		}
	}
	instance, err = r.proxies.wrap(def, raw)
	if err != nil {
		return nil, &ConstructionError{Name: def.Name, Cause: err}
	}

	// 外部提供的值由调用方负责释放
	if def.Scope == ScopeSingleton && def.Factory.Kind != FactoryValue && r.track != nil {
		r.track(def, raw)
	}
	_, isProxy := instance.(proxied)
	r.logger.Debug("bean created",
		logging.F("bean", def.Name),
		logging.F("scope", string(def.Scope)),
		logging.F("proxied", isProxy))
	return instance, nil
}
