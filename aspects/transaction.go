package aspects

import (
	"context"
	"fmt"

	"github.com/gocrud/bean/ioc"
	"gorm.io/gorm"
)

type txKey struct{ db *gorm.DB }

// Transactional 在事务中执行方法。方法的第一个参数必须是 context.Context，
// 会被替换为携带事务的上下文，方法内用 TxFrom 取得事务。
// 返回错误或 panic 时回滚；上下文中已有同一数据库的事务时直接加入。
func Transactional(db *gorm.DB) ioc.Interceptor {
	return ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		if len(inv.Args) == 0 {
			return nil, fmt.Errorf("aspects: %s: transactional method needs a context argument", inv.Method.FullName())
		}
		ctx, ok := inv.Args[0].(context.Context)
		if !ok || ctx == nil {
			return nil, fmt.Errorf("aspects: %s: first argument is not a context.Context", inv.Method.FullName())
		}
		if _, ok := ctx.Value(txKey{db}).(*gorm.DB); ok {
			return inv.Proceed()
		}

		var res any
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv.Args[0] = context.WithValue(ctx, txKey{db}, tx)
			var err error
			res, err = inv.Proceed()
			return err
		})
		return res, err
	})
}

// TxFrom 返回 ctx 中 db 的事务，没有事务时返回绑定 ctx 的 db。
func TxFrom(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{db}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
