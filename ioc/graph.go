package ioc

import "sync"

// graphBuilder 静态检查依赖图，Refresh 检查全部定义，解析前检查请求可达的子图。
type graphBuilder struct {
	registry *Registry
}

// edges 定义依赖的候选定义。缺失或有歧义的依赖在运行时报告，这里跳过
func (g *graphBuilder) edges(def *Definition) []*Definition {
	var out []*Definition
	if def.Factory.Kind == FactoryProducer {
		if owner, ok := g.registry.Lookup(def.Factory.Owner); ok {
			out = append(out, owner)
		}
	}
	for _, req := range def.Dependencies {
		if req.Multiplicity == Collection {
			out = append(out, g.registry.FindAll(req.Type)...)
			continue
		}
		if cands := g.registry.Find(req.Type, req.Qualifier); len(cands) == 1 {
			out = append(out, cands[0])
		}
	}
	return out
}

const (
	unvisited = iota
	visiting
	visited
)

// graphWalk 一次深度优先遍历的状态
type graphWalk struct {
	g     *graphBuilder
	state map[string]int
	path  []string
	order []*Definition
}

func (g *graphBuilder) walk() *graphWalk {
	return &graphWalk{g: g, state: make(map[string]int)}
}

// visit 依赖先于 d 进入 order；回到 visiting 状态的定义即为环路
func (w *graphWalk) visit(d *Definition) error {
	w.state[d.Name] = visiting
	w.path = append(w.path, d.Name)
	for _, dep := range w.g.edges(d) {
		switch w.state[dep.Name] {
		case visiting:
			for i, n := range w.path {
				if n == dep.Name {
					return &CircularDependencyError{Cycle: append([]string(nil), w.path[i:]...)}
				}
			}
		case unvisited:
			if err := w.visit(dep); err != nil {
				return err
			}
		}
	}
	w.path = w.path[:len(w.path)-1]
	w.state[d.Name] = visited
	w.order = append(w.order, d)
	return nil
}

// buildOrder 按注册顺序做深度优先遍历，返回依赖在前的拓扑序。
// 发现环路时返回 CircularDependencyError。
func (g *graphBuilder) buildOrder() ([]*Definition, error) {
	w := g.walk()
	for _, d := range g.registry.Definitions() {
		if w.state[d.Name] == unvisited {
			if err := w.visit(d); err != nil {
				return nil, err
			}
		}
	}
	return w.order, nil
}

// check 只遍历 root 可达的子图
func (g *graphBuilder) check(root *Definition) error {
	return g.walk().visit(root)
}

// cycleCache 按定义缓存子图检查结果，注册表增长后失效
type cycleCache struct {
	graph *graphBuilder

	mu      sync.Mutex
	size    int
	results map[string]error
}

func (c *cycleCache) check(def *Definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.graph.registry.Len(); n != c.size || c.results == nil {
		c.size = n
		c.results = make(map[string]error)
	}
	if err, ok := c.results[def.Name]; ok {
		return err
	}
	err := c.graph.check(def)
	c.results[def.Name] = err
	return err
}
