package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapProvider 将日志条目转交给 zap
type ZapProvider struct {
	logger *zap.Logger
}

// NewZapProvider 创建 zap 日志提供者，logger 为 nil 时使用生产配置
func NewZapProvider(logger *zap.Logger) *ZapProvider {
	if logger == nil {
		var err error
		if logger, err = zap.NewProduction(); err != nil {
			logger = zap.NewNop()
		}
	}
	return &ZapProvider{logger: logger.WithOptions(zap.AddCallerSkip(3))}
}

// Write 实现 LoggerProvider
// Fatal 不调用 zap 的 Fatal，退出由 compositeLogger 负责
func (p *ZapProvider) Write(entry *LogEntry) {
	fields := make([]zap.Field, 0, len(entry.Fields)+1)
	if entry.Category != "" {
		fields = append(fields, zap.String("category", entry.Category))
	}
	for _, f := range entry.Fields {
		if err, ok := f.Value.(error); ok {
			fields = append(fields, zap.NamedError(f.Key, err))
			continue
		}
		fields = append(fields, zap.Any(f.Key, f.Value))
	}

	if ce := p.logger.Check(zapLevel(entry.Level), entry.Message); ce != nil {
		ce.Time = entry.Time
		ce.Write(fields...)
	}
}

// Sync 刷新 zap 缓冲
func (p *ZapProvider) Sync() error {
	return p.logger.Sync()
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
