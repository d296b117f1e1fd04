package aspects_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gocrud/bean/ioc"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gocrud/bean/aspects"
)

// Ledger 测试用的业务接口
type Ledger interface {
	Deposit(ctx context.Context, amount int) (int, error)
	Boom(ctx context.Context) error
}

type ledgerProxy struct{ *ioc.ProxyHandle }

func (p ledgerProxy) Deposit(ctx context.Context, amount int) (int, error) {
	return ioc.ResultAs[int](p.Invoke("Deposit", []any{ctx, amount}, func(args []any) (any, error) {
		return p.Target().(Ledger).Deposit(args[0].(context.Context), args[1].(int))
	}))
}

func (p ledgerProxy) Boom(ctx context.Context) error {
	_, err := p.Invoke("Boom", []any{ctx}, func(args []any) (any, error) {
		return nil, p.Target().(Ledger).Boom(args[0].(context.Context))
	})
	return err
}

var errNegative = errors.New("negative amount")

type Entry struct {
	ID     uint
	Amount int
}

// ledger db 为 nil 时只计数
type ledger struct {
	db    *gorm.DB
	calls atomic.Int32
}

func (l *ledger) Deposit(ctx context.Context, amount int) (int, error) {
	l.calls.Add(1)
	if l.db != nil {
		if err := aspects.TxFrom(ctx, l.db).Create(&Entry{Amount: amount}).Error; err != nil {
			return 0, err
		}
	}
	if amount < 0 {
		return 0, errNegative
	}
	return amount, nil
}

func (l *ledger) Boom(context.Context) error {
	l.calls.Add(1)
	panic("boom")
}

// newLedger 注册 target 并为所有方法绑定 interceptor
func newLedger(t *testing.T, target *ledger, pc string, interceptor ioc.Interceptor) Ledger {
	t.Helper()
	c := ioc.New()
	require.NoError(t, ioc.RegisterDecorator[Ledger](c, func(h *ioc.ProxyHandle) Ledger { return ledgerProxy{h} }))
	require.NoError(t, ioc.Instance[Ledger](c, target))
	require.NoError(t, ioc.Intercept(c, ioc.MustParsePointcut(pc), interceptor, 0))
	l, err := ioc.Resolve[Ledger](c)
	require.NoError(t, err)
	return l
}
