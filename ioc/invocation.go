package ioc

import (
	"context"
	"errors"
)

// InvocationState 一次代理调用所处的阶段。
type InvocationState int

const (
	StateDispatched InvocationState = iota
	StateRunningBefore
	StateProceedCalled
	StateShortCircuited
	StateRunningAfter
	StateCompleted
	StateFailed
)

func (s InvocationState) String() string {
	switch s {
	case StateDispatched:
		return "DISPATCHED"
	case StateRunningBefore:
		return "RUNNING_BEFORE"
	case StateProceedCalled:
		return "PROCEED_CALLED"
	case StateShortCircuited:
		return "SHORT_CIRCUITED"
	case StateRunningAfter:
		return "RUNNING_AFTER"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var errProceedTwice = errors.New("proceed called more than once")

// Invocation 一次方法调用的记录。拦截器可以修改 Args，修改对后续链元素和目标可见。
// 不要在拦截器返回后继续使用。
type Invocation struct {
	Method *Method
	Args   []any
	Target any

	chain    []Interceptor
	cursor   int
	consumed []bool // consumed[len(chain)] 对应目标方法
	call     func(args []any) (any, error)
	state    InvocationState
}

func newInvocation(m *Method, target any, args []any, chain []Interceptor, call func([]any) (any, error)) *Invocation {
	return &Invocation{
		Method:   m,
		Args:     args,
		Target:   target,
		chain:    chain,
		consumed: make([]bool, len(chain)+1),
		call:     call,
	}
}

// Proceed 调用链中的下一个拦截器，链末尾时调用目标方法。
// 同一拦截器重复调用返回 ProxyInvocationError，目标不会第二次执行。
func (inv *Invocation) Proceed() (any, error) {
	inv.state = StateProceedCalled
	res, err := inv.step(inv.cursor)
	inv.state = StateRunningAfter
	return res, err
}

// Context 第一个参数是 context.Context 时返回它，否则返回 Background。
func (inv *Invocation) Context() context.Context {
	if len(inv.Args) > 0 {
		if ctx, ok := inv.Args[0].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// State 当前阶段。
func (inv *Invocation) State() InvocationState { return inv.state }

// TargetInvoked 目标方法是否已执行。
func (inv *Invocation) TargetInvoked() bool { return inv.consumed[len(inv.chain)] }

func (inv *Invocation) run() (any, error) {
	inv.state = StateDispatched
	res, err := inv.step(0)
	if err != nil {
		inv.state = StateFailed
	} else {
		inv.state = StateCompleted
	}
	return res, err
}

func (inv *Invocation) step(j int) (any, error) {
	if inv.consumed[j] {
		return nil, &ProxyInvocationError{Method: inv.Method.FullName(), Cause: errProceedTwice}
	}
	inv.consumed[j] = true

	prev := inv.cursor
	inv.cursor = j + 1
	defer func() { inv.cursor = prev }()

	if j == len(inv.chain) {
		return inv.call(inv.Args)
	}
	inv.state = StateRunningBefore
	res, err := inv.chain[j].Invoke(inv)
	if !inv.consumed[j+1] {
		inv.state = StateShortCircuited
	}
	return res, err
}
