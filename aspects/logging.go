package aspects

import (
	"time"

	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
)

// Logging 记录方法调用耗时，失败时以 Warn 级别记录错误。
func Logging(logger logging.Logger) ioc.Interceptor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		start := time.Now()
		res, err := inv.Proceed()
		fields := []logging.Field{
			logging.F("method", inv.Method.FullName()),
			logging.F("bean", inv.Method.Bean),
			logging.F("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("method failed", append(fields, logging.F("error", err))...)
			return res, err
		}
		logger.Debug("method invoked", fields...)
		return res, nil
	})
}
