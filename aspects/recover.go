package aspects

import (
	"fmt"
	"runtime/debug"

	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// PanicError 携带 panic 值和调用栈，errors.Is(err, ErrPanic) 为真。
type PanicError struct {
	Method string
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("aspects: panic in %s: %v", e.Method, e.Value)
}

func (e *PanicError) Unwrap() error { return ErrPanic }

// Recover 把链内层和目标方法的 panic 转换为 *PanicError。
func Recover(logger ...logging.Logger) ioc.Interceptor {
	var log logging.Logger = logging.NewNopLogger()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return ioc.InterceptorFunc(func(inv *ioc.Invocation) (res any, err error) {
		defer func() {
			if p := recover(); p != nil {
				pe := &PanicError{Method: inv.Method.FullName(), Value: p, Stack: debug.Stack()}
				log.Error("panic recovered",
					logging.F("method", pe.Method),
					logging.F("panic", fmt.Sprint(p)),
					logging.F("stack", string(pe.Stack)))
				res, err = nil, pe
			}
		}()
		return inv.Proceed()
	})
}
