package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/bean/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/bean/schedule"
)

// jobProxy 让拦截器作用于 Job.Run
type jobProxy struct{ *ioc.ProxyHandle }

func (p jobProxy) Name() string { return p.Target().(schedule.Job).Name() }
func (p jobProxy) Spec() string { return p.Target().(schedule.Job).Spec() }

func (p jobProxy) Run(ctx context.Context) error {
	_, err := p.Invoke("Run", []any{ctx}, func(args []any) (any, error) {
		return nil, p.Target().(schedule.Job).Run(args[0].(context.Context))
	})
	return err
}

type cleanupJob struct {
	runs atomic.Int32
}

func (j *cleanupJob) Name() string { return "cleanup" }
func (j *cleanupJob) Spec() string { return "* * * * * *" }
func (j *cleanupJob) Run(context.Context) error {
	j.runs.Add(1)
	return nil
}

func newScheduler(t *testing.T, setup func(c ioc.Container)) (*schedule.Scheduler, ioc.Container) {
	t.Helper()
	c := ioc.New()
	require.NoError(t, ioc.Instance[ioc.BeanFactory](c, c))
	c.AddInitializer(schedule.Initializer(func(o *schedule.Options) { o.EnableSeconds = true }))
	setup(c)
	require.NoError(t, c.Refresh())
	s, err := ioc.Resolve[*schedule.Scheduler](c)
	require.NoError(t, err)
	return s, c
}

func TestSchedulerLoadsJobBeans(t *testing.T) {
	job := &cleanupJob{}
	var intercepted atomic.Int32
	s, _ := newScheduler(t, func(c ioc.Container) {
		require.NoError(t, ioc.RegisterDecorator[schedule.Job](c, func(h *ioc.ProxyHandle) schedule.Job { return jobProxy{h} }))
		require.NoError(t, ioc.Instance[schedule.Job](c, job))
		require.NoError(t, ioc.Instance[schedule.Job](c, schedule.NewJob("report", "@every 1h", func(context.Context) error {
			return errors.New("no data")
		}), ioc.WithName("report")))
		require.NoError(t, ioc.Intercept(c, ioc.MethodNamed("Run"), ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
			intercepted.Add(1)
			return inv.Proceed()
		}), 0))
	})

	require.NoError(t, s.Load(context.Background()))
	assert.ElementsMatch(t, []string{"cleanup", "report"}, s.Jobs())

	require.NoError(t, s.Trigger(context.Background(), "cleanup"))
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Equal(t, int32(1), intercepted.Load())

	assert.EqualError(t, s.Trigger(context.Background(), "report"), "no data")
	assert.Error(t, s.Trigger(context.Background(), "missing"))

	s.Remove("report")
	assert.Equal(t, []string{"cleanup"}, s.Jobs())
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	job := &cleanupJob{}
	s, _ := newScheduler(t, func(c ioc.Container) {
		require.NoError(t, ioc.Instance[schedule.Job](c, job))
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerInvalidSpec(t *testing.T) {
	s, _ := newScheduler(t, func(c ioc.Container) {
		require.NoError(t, ioc.Instance[schedule.Job](c, schedule.NewJob("bad", "every now and then", func(context.Context) error { return nil })))
	})
	assert.ErrorContains(t, s.Load(context.Background()), "bad")
}

func TestSchedulerInvalidLocation(t *testing.T) {
	_, err := schedule.New(nil, nil, schedule.Options{Location: "Mars/Olympus"})
	assert.Error(t, err)
}
