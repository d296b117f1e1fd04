package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/gocrud/bean/logging"
	"github.com/robfig/cron/v3"
)

// Options 调度器配置选项
type Options struct {
	// Location 时区，默认 UTC
	Location string
	// EnableSeconds 启用秒级精度（默认分钟级）
	EnableSeconds bool
	// EnableCronLogger 启用 cron 库的内部调度日志
	EnableCronLogger bool
}

// UseConfiguration 读取 section 中的 location、seconds 和 verbose
func (o *Options) UseConfiguration(cfg config.Configuration, section string) {
	sub := cfg.GetSection(section)
	o.Location = sub.GetWithDefault("location", o.Location)
	if v, err := sub.GetBool("seconds"); err == nil {
		o.EnableSeconds = v
	}
	if v, err := sub.GetBool("verbose"); err == nil {
		o.EnableCronLogger = v
	}
}

// Scheduler 定时任务托管服务。Start 时从容器收集全部 Job。
type Scheduler struct {
	cron    *cron.Cron
	factory ioc.BeanFactory
	logger  logging.Logger

	mu   sync.RWMutex
	jobs map[string]Job
	ids  map[string]cron.EntryID
}

// Initializer 注册 *Scheduler，依赖容器中的 ioc.BeanFactory。
func Initializer(configure func(*Options)) ioc.Initializer {
	opts := Options{Location: "UTC"}
	if configure != nil {
		configure(&opts)
	}
	return ioc.InitializerFunc(func(b ioc.Binder) error {
		def := ioc.NewDefinition("schedule.scheduler", ioc.TypeOf[*Scheduler](),
			ioc.NonProxyable(),
			ioc.WithDependencies(ioc.Need[ioc.BeanFactory](), ioc.Need[logging.Logger]().AsOptional()))
		def.Factory = ioc.Constructor(func(f ioc.BeanFactory, logger logging.Logger) (*Scheduler, error) {
			return New(f, logger, opts)
		})
		return b.Register(def)
	})
}

// New 创建调度器
func New(f ioc.BeanFactory, logger logging.Logger, opts Options) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cronOpts := []cron.Option{
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if opts.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if opts.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}
	if opts.Location != "" {
		loc, err := time.LoadLocation(opts.Location)
		if err != nil {
			return nil, fmt.Errorf("schedule: invalid location %q: %w", opts.Location, err)
		}
		cronOpts = append(cronOpts, cron.WithLocation(loc))
	}
	return &Scheduler{
		cron:    cron.New(cronOpts...),
		factory: f,
		logger:  logger,
		jobs:    make(map[string]Job),
		ids:     make(map[string]cron.EntryID),
	}, nil
}

// Name 实现 hosting.Named
func (s *Scheduler) Name() string { return "schedule" }

// Load 从容器解析全部 Job 并加入调度，已加入的同名任务跳过。
func (s *Scheduler) Load(ctx context.Context) error {
	jobs, err := ioc.ResolveAllContext[Job](ctx, s.factory)
	if err != nil {
		return fmt.Errorf("schedule: resolve jobs: %w", err)
	}
	for _, job := range jobs {
		if err := s.add(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) add(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return nil
	}
	runCtx := context.WithoutCancel(ctx)
	id, err := s.cron.AddFunc(job.Spec(), func() { s.run(runCtx, name, job) })
	if err != nil {
		return fmt.Errorf("schedule: failed to add job '%s': %w", name, err)
	}
	s.jobs[name] = job
	s.ids[name] = id
	s.logger.Info("job scheduled", logging.F("job", name), logging.F("spec", job.Spec()))
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.logger.Error("job failed", logging.F("job", name), logging.F("error", err))
		return err
	}
	s.logger.Debug("job completed", logging.F("job", name), logging.F("duration", time.Since(start)))
	return nil
}

// Trigger 立即执行一次指定任务
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("schedule: job '%s' not found", name)
	}
	return s.run(ctx, name, job)
}

// Remove 移除任务
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[name]; ok {
		s.cron.Remove(id)
		delete(s.ids, name)
		delete(s.jobs, name)
		s.logger.Info("job removed", logging.F("job", name))
	}
}

// Jobs 已调度的任务名
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start 加载任务并启动调度，阻塞到 ctx 结束
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", logging.F("jobs", len(s.cron.Entries())))
	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待运行中的任务完成或 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 将 cron 的日志接口适配到 logging.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.F("error", err))
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
