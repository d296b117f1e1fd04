package ioc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gocrud/bean/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGreeterContainer(t *testing.T, target Greeter, opts ...ioc.Option) ioc.Container {
	t.Helper()
	c := ioc.New()
	require.NoError(t, ioc.RegisterDecorator[Greeter](c, newGreeterProxy))
	require.NoError(t, ioc.Instance[Greeter](c, target, opts...))
	return c
}

func TestInterceptorOrdering(t *testing.T) {
	rec := &recorder{}
	c := newGreeterContainer(t, &recordingGreeter{rec: rec})
	// 声明顺序与 Order 相反，执行顺序只取决于 Order
	require.NoError(t, ioc.Intercept(c, ioc.Always(), rec.interceptor("I2"), 2))
	require.NoError(t, ioc.Intercept(c, ioc.Always(), rec.interceptor("I1"), 1))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	out, err := g.Greet(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", out)
	assert.Equal(t, []string{"I1:before", "I2:before", "target", "I2:after", "I1:after"}, rec.events)
}

func TestInterceptorTieBrokenByDeclaration(t *testing.T) {
	rec := &recorder{}
	c := newGreeterContainer(t, &recordingGreeter{rec: rec})
	require.NoError(t, ioc.Intercept(c, ioc.Always(), rec.interceptor("first"), 0))
	require.NoError(t, ioc.Intercept(c, ioc.Always(), rec.interceptor("second"), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	_, err = g.Greet(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"first:before", "second:before", "target", "second:after", "first:after"}, rec.events)
}

func TestInterceptorShortCircuit(t *testing.T) {
	rec := &recorder{}
	c := newGreeterContainer(t, &recordingGreeter{rec: rec})
	require.NoError(t, ioc.Intercept(c, ioc.Always(), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		rec.events = append(rec.events, "I1")
		return "denied", nil
	}), 1))
	require.NoError(t, ioc.Intercept(c, ioc.Always(), rec.interceptor("I2"), 2))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	out, err := g.Greet(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "denied", out)
	assert.Equal(t, []string{"I1"}, rec.events)
}

func TestProxyTransparentOnFailure(t *testing.T) {
	rec := &recorder{}
	c := newGreeterContainer(t, &recordingGreeter{rec: rec})
	require.NoError(t, ioc.Intercept(c, ioc.Always(), rec.interceptor("I1"), 1))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	err = g.Fail(context.Background())
	assert.True(t, err == errGreetFailed, "target error must reach the caller unchanged, got %v", err)
	assert.Equal(t, []string{"I1:before", "target", "I1:after"}, rec.events)
}

func TestInterceptorMayTranslateError(t *testing.T) {
	translated := errors.New("translated")
	c := newGreeterContainer(t, &greeter{})
	require.NoError(t, ioc.Intercept(c, ioc.MethodNamed("Fail"), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		if _, err := inv.Proceed(); err != nil {
			return nil, translated
		}
		return nil, nil
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	assert.Equal(t, translated, g.Fail(context.Background()))
}

func TestProceedTwiceRejected(t *testing.T) {
	target := &greeter{}
	c := newGreeterContainer(t, target)
	var second error
	require.NoError(t, ioc.Intercept(c, ioc.Always(), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		res, err := inv.Proceed()
		_, second = inv.Proceed()
		return res, err
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	out, err := g.Greet(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "hello x", out)
	assert.Equal(t, int32(1), target.calls.Load())

	var proxyErr *ioc.ProxyInvocationError
	assert.ErrorAs(t, second, &proxyErr)
}

func TestArgumentsRewrittenByInterceptor(t *testing.T) {
	c := newGreeterContainer(t, &greeter{})
	require.NoError(t, ioc.Intercept(c, ioc.MethodNamePrefix("Gr"), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		inv.Args[1] = "alice"
		return inv.Proceed()
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	out, err := g.Greet(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "hello alice", out)
}

func TestInvocationState(t *testing.T) {
	var (
		before, after ioc.InvocationState
		method        string
	)
	c := newGreeterContainer(t, &greeter{})
	require.NoError(t, ioc.Intercept(c, ioc.Always(), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		before = inv.State()
		method = inv.Method.Name
		res, err := inv.Proceed()
		after = inv.State()
		return res, err
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	_, err = g.Greet(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, ioc.StateRunningBefore, before)
	assert.Equal(t, ioc.StateRunningAfter, after)
	assert.Equal(t, "Greet", method)
}

func TestEmptyChainReturnsRawInstance(t *testing.T) {
	target := &greeter{}
	c := newGreeterContainer(t, target)
	require.NoError(t, ioc.Intercept(c, ioc.MethodNamed("Other"), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		return inv.Proceed()
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	assert.Same(t, target, g)
}

func TestNonProxyable(t *testing.T) {
	target := &greeter{}
	c := newGreeterContainer(t, target, ioc.NonProxyable())
	require.NoError(t, ioc.Intercept(c, ioc.Always(), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		return inv.Proceed()
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	assert.Same(t, target, g)
}

func TestProxyUnwrap(t *testing.T) {
	target := &greeter{}
	c := newGreeterContainer(t, target)
	require.NoError(t, ioc.Intercept(c, ioc.Always(), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		return inv.Proceed()
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	assert.IsType(t, greeterProxy{}, g)
	assert.Same(t, target, ioc.Unwrap(g))
}

func TestMissingDecorator(t *testing.T) {
	c := ioc.New()
	require.NoError(t, ioc.Instance[Greeter](c, &greeter{}))
	require.NoError(t, ioc.Intercept(c, ioc.Always(), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		return inv.Proceed()
	}), 0))

	_, err := ioc.Resolve[Greeter](c)
	var construction *ioc.ConstructionError
	require.ErrorAs(t, err, &construction)
	assert.ErrorIs(t, err, ioc.ErrNoDecorator)
}

func TestAnnotationPointcut(t *testing.T) {
	rec := &recorder{}
	c := newGreeterContainer(t, &recordingGreeter{rec: rec}, ioc.AnnotateMethod("Fail", "Audited"))
	pc, err := ioc.ParsePointcut("method:@Audited")
	require.NoError(t, err)
	require.NoError(t, ioc.Intercept(c, pc, rec.interceptor("audit"), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	_, err = g.Greet(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"target"}, rec.events)

	rec.events = nil
	_ = g.Fail(context.Background())
	assert.Equal(t, []string{"audit:before", "target", "audit:after"}, rec.events)
}

func TestResultAsKeepsError(t *testing.T) {
	denied := errors.New("denied")
	c := newGreeterContainer(t, &greeter{})
	require.NoError(t, ioc.Intercept(c, ioc.MethodNamed("Greet"), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		return 42, denied
	}), 0))

	g, err := ioc.Resolve[Greeter](c)
	require.NoError(t, err)
	_, err = g.Greet(context.Background(), "bob")
	assert.True(t, err == denied, "interceptor error must reach the caller unchanged, got %v", err)
}
