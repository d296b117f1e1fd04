package aspects_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gocrud/bean/aspects"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接独立
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Entry{}))
	return db
}

func countEntries(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Entry{}).Count(&n).Error)
	return n
}

func TestTransactionalCommit(t *testing.T) {
	db := openDB(t)
	l := newLedger(t, &ledger{db: db}, "name:Deposit", aspects.Transactional(db))

	out, err := l.Deposit(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, out)
	assert.Equal(t, int64(1), countEntries(t, db))
}

func TestTransactionalRollback(t *testing.T) {
	db := openDB(t)
	l := newLedger(t, &ledger{db: db}, "name:Deposit", aspects.Transactional(db))

	_, err := l.Deposit(context.Background(), -1)
	assert.Equal(t, errNegative, err)
	assert.Equal(t, int64(0), countEntries(t, db))
}

func TestTxFromWithoutTransaction(t *testing.T) {
	db := openDB(t)
	target := &ledger{db: db}
	_, err := target.Deposit(context.Background(), -1)
	assert.ErrorIs(t, err, errNegative)
	// 没有事务时写入直接生效
	assert.Equal(t, int64(1), countEntries(t, db))
}
