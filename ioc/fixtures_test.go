package ioc_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gocrud/bean/ioc"
)

// Greeter 代理测试使用的接口
type Greeter interface {
	Greet(ctx context.Context, name string) (string, error)
	Fail(ctx context.Context) error
}

type greeter struct {
	calls atomic.Int32
	err   error
}

var errGreetFailed = errors.New("greet failed")

func (g *greeter) Greet(_ context.Context, name string) (string, error) {
	g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	return "hello " + name, nil
}

func (g *greeter) Fail(context.Context) error {
	g.calls.Add(1)
	return errGreetFailed
}

// greeterProxy 手写的装饰器，与代码生成的形式相同
type greeterProxy struct{ *ioc.ProxyHandle }

func (p greeterProxy) Greet(ctx context.Context, name string) (string, error) {
	return ioc.ResultAs[string](p.Invoke("Greet", []any{ctx, name}, func(args []any) (any, error) {
		return p.Target().(Greeter).Greet(args[0].(context.Context), args[1].(string))
	}))
}

func (p greeterProxy) Fail(ctx context.Context) error {
	_, err := p.Invoke("Fail", []any{ctx}, func(args []any) (any, error) {
		return nil, p.Target().(Greeter).Fail(args[0].(context.Context))
	})
	return err
}

func newGreeterProxy(h *ioc.ProxyHandle) Greeter { return greeterProxy{h} }

// recorder 记录拦截器执行顺序
type recorder struct {
	events []string
}

func (r *recorder) interceptor(name string) ioc.Interceptor {
	return ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		r.events = append(r.events, name+":before")
		res, err := inv.Proceed()
		r.events = append(r.events, name+":after")
		return res, err
	})
}

// recordingGreeter 执行时写入 recorder
type recordingGreeter struct {
	rec *recorder
}

func (g *recordingGreeter) Greet(_ context.Context, name string) (string, error) {
	g.rec.events = append(g.rec.events, "target")
	return "hi " + name, nil
}

func (g *recordingGreeter) Fail(context.Context) error {
	g.rec.events = append(g.rec.events, "target")
	return errGreetFailed
}

type Repo interface {
	Find(id int) string
}

type memRepo struct {
	name string
}

func (r *memRepo) Find(id int) string { return r.name }

type Service struct {
	Repo Repo `inject:""`
}

type A struct{ B *B }
type B struct{ A *A }

func NewA(b *B) *A { return &A{B: b} }
func NewB(a *A) *B { return &B{A: a} }

type closer struct {
	name   string
	closed *[]string
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

// repoFactory 生产方法的所属 Bean
type repoFactory struct {
	prefix string
}

func (f *repoFactory) MakeRepo(suffix string) Repo {
	return &memRepo{name: f.prefix + suffix}
}

// warmCache PostConstruct 后才可用
type warmCache struct {
	ready bool
	fail  error
}

func (c *warmCache) PostConstruct() error {
	if c.fail != nil {
		return c.fail
	}
	c.ready = true
	return nil
}

// slowLeft、slowRight 构建较慢，让两个 goroutine 同时持有环的一端
type slowLeft struct{}
type slowRight struct{}

type Left struct{ Right *Right }
type Right struct{ Left *Left }

func NewSlowLeft() *slowLeft {
	time.Sleep(50 * time.Millisecond)
	return &slowLeft{}
}

func NewSlowRight() *slowRight {
	time.Sleep(50 * time.Millisecond)
	return &slowRight{}
}

func NewLeft(_ *slowLeft, r *Right) *Left  { return &Left{Right: r} }
func NewRight(_ *slowRight, l *Left) *Right { return &Right{Left: l} }
