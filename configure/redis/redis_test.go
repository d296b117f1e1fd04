package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/gocrud/bean/config"
	"github.com/gocrud/bean/ioc"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/bean/configure/redis"
)

// CacheService 依赖按名称注入的客户端
type CacheService struct {
	Cache *goredis.Client `inject:"cache"`
	Queue *goredis.Client `inject:"queue,optional"`
}

func lazy(addr string) func(*redis.ClientOptions) {
	return func(o *redis.ClientOptions) {
		o.Addr = addr
		o.Ping = false
	}
}

func TestRedisClients(t *testing.T) {
	c := ioc.New()
	c.AddInitializer(redis.Configure(func(b *redis.Builder) {
		b.AddClient("cache", lazy("localhost:6380"))
	}))
	require.NoError(t, ioc.Register[*CacheService](c))
	require.NoError(t, c.Refresh())

	svc, err := ioc.Resolve[*CacheService](c)
	require.NoError(t, err)
	require.NotNil(t, svc.Cache)
	assert.Equal(t, "localhost:6380", svc.Cache.Options().Addr)
	assert.Nil(t, svc.Queue)

	require.NoError(t, c.Close(context.Background()))
	assert.ErrorIs(t, svc.Cache.Ping(context.Background()).Err(), goredis.ErrClosed)
}

func TestRedisClientsQualified(t *testing.T) {
	c := ioc.New()
	c.AddInitializer(redis.Configure(func(b *redis.Builder) {
		b.AddClient("cache", lazy("localhost:6380")).
			AddClient("queue", lazy("localhost:6381"))
	}))
	require.NoError(t, c.Refresh())

	queue, err := ioc.ResolveNamed[*goredis.Client](c, "queue")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6381", queue.Options().Addr)

	_, err = ioc.Resolve[*goredis.Client](c)
	var ambiguous *ioc.AmbiguousDependencyError
	assert.ErrorAs(t, err, &ambiguous)
}

func TestRedisInvalidOptions(t *testing.T) {
	c := ioc.New()
	c.AddInitializer(redis.Configure(func(b *redis.Builder) {
		b.AddClient("cache", func(o *redis.ClientOptions) { o.Addr = "" })
	}))
	assert.ErrorContains(t, c.Refresh(), "redis address is required")
}

func TestRedisFromConfig(t *testing.T) {
	cfg := config.New(map[string]any{
		"redis": map[string]any{
			"sessions": map[string]any{
				"addr":        "localhost:6390",
				"db":          2,
				"dialTimeout": "2s",
				"ping":        false,
			},
		},
	})
	c := ioc.New()
	c.AddInitializer(redis.NewBuilder().AddFromConfig(cfg, "redis").Initializer())
	require.NoError(t, c.Refresh())

	client, err := ioc.ResolveNamed[*goredis.Client](c, "sessions")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6390", client.Options().Addr)
	assert.Equal(t, 2, client.Options().DB)
	assert.Equal(t, 2*time.Second, client.Options().DialTimeout)
	require.NoError(t, c.Close(context.Background()))
}

func TestRedisPing(t *testing.T) {
	c := ioc.New()
	c.AddInitializer(redis.Configure(func(b *redis.Builder) {
		b.AddClient("default", func(o *redis.ClientOptions) { o.DialTimeout = 200 * time.Millisecond })
	}))
	require.NoError(t, c.Refresh())

	client, err := ioc.Resolve[*goredis.Client](c)
	if err != nil {
		var construction *ioc.ConstructionError
		require.ErrorAs(t, err, &construction)
		t.Skipf("redis not available: %v", err)
	}
	assert.NoError(t, client.Ping(context.Background()).Err())
	require.NoError(t, c.Close(context.Background()))
}
