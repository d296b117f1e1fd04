package schedule

import "context"

// Job 定时任务 Bean。通过容器解析，匹配的拦截器对 Run 生效。
type Job interface {
	Name() string
	// Spec cron 表达式，如 "0 */5 * * * *" 或 "@every 1m"
	Spec() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name, spec string
	fn         func(ctx context.Context) error
}

// NewJob 用函数构造 Job
func NewJob(name, spec string, fn func(ctx context.Context) error) Job {
	return &funcJob{name: name, spec: spec, fn: fn}
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Spec() string                  { return j.spec }
func (j *funcJob) Run(ctx context.Context) error { return j.fn(ctx) }
