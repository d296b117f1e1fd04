package database_test

import (
	"context"
	"testing"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/bean/configure/database"
)

type User struct {
	gorm.Model
	Name string
}

type UserStore struct {
	Master *gorm.DB `inject:"master"`
	Slave  *gorm.DB `inject:"slave,?"`
}

func TestDatabaseInitializer(t *testing.T) {
	c := ioc.New()
	c.AddInitializer(database.Configure(func(b *database.Builder) {
		b.Add("master", sqlite.Open("file::memory:"), func(o *database.Options) {
			o.MaxOpenConns = 1
			o.AutoMigrate = []any{&User{}}
		})
	}))
	require.NoError(t, ioc.Register[*UserStore](c))
	require.NoError(t, c.Refresh())

	store, err := ioc.Resolve[*UserStore](c)
	require.NoError(t, err)
	require.NotNil(t, store.Master)
	assert.Nil(t, store.Slave)

	sqlDB, err := store.Master.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, store.Master.Create(&User{Name: "test"}).Error)

	require.NoError(t, c.Close(context.Background()))
	assert.Error(t, sqlDB.Ping())
}

func TestDatabaseFromConfig(t *testing.T) {
	cfg := config.New(map[string]any{
		"database": map[string]any{
			"main": map[string]any{"dsn": "file::memory:", "maxOpenConns": 3, "silent": true},
		},
	})
	c := ioc.New()
	c.AddInitializer(database.NewBuilder().AddFromConfig(cfg, "database").Initializer())
	require.NoError(t, c.Refresh())

	db, err := ioc.ResolveNamed[*gorm.DB](c, "main")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, c.Close(context.Background()))
}

func TestDatabaseBuilderErrors(t *testing.T) {
	c := ioc.New()
	c.AddInitializer(database.Configure(func(b *database.Builder) {
		b.Add("invalid", nil, nil)
		b.Add("dup", sqlite.Open("file::memory:"), nil)
		b.Add("dup", sqlite.Open("file::memory:"), nil)
	}))
	err := c.Refresh()
	require.Error(t, err)
	assert.ErrorContains(t, err, "database dialector is required")
	assert.ErrorContains(t, err, "already configured")

	cfg := config.New(map[string]any{"database": map[string]any{"main": map[string]any{}}})
	c2 := ioc.New()
	c2.AddInitializer(database.NewBuilder().AddFromConfig(cfg, "database").Initializer())
	assert.ErrorContains(t, c2.Refresh(), "dsn is required")
}
