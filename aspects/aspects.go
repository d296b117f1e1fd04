// Package aspects 提供常用的方法拦截器：日志、限流、访问控制、事务和 panic 恢复。
package aspects

import (
	"errors"

	"github.com/gocrud/bean/ioc"
)

var (
	// ErrRateLimited 调用被限流器拒绝
	ErrRateLimited = errors.New("aspects: rate limited")
	// ErrAccessDenied 调用被访问控制拒绝
	ErrAccessDenied = errors.New("aspects: access denied")
	// ErrPanic 目标方法发生 panic
	ErrPanic = errors.New("aspects: panic")
)

// 内置拦截器的默认顺序，数值小者在外层
const (
	OrderRecover       = -300
	OrderLogging       = -200
	OrderAccess        = -100
	OrderRateLimit     = -50
	OrderTransactional = 100
)

// Bind 以默认名称构造 Binding。
func Bind(name string, pc ioc.Pointcut, i ioc.Interceptor, order int) ioc.Binding {
	return ioc.Binding{Name: name, Pointcut: pc, Interceptor: i, Order: order}
}
