package aspects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/bean/ioc"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter 按键判定调用是否放行。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyFunc 计算限流键。
type KeyFunc func(inv *ioc.Invocation) string

// MethodKey 以方法全名作为键。
func MethodKey(inv *ioc.Invocation) string {
	return inv.Method.FullName()
}

// RateLimit 限流器拒绝时返回 ErrRateLimited，目标方法不执行。
// 限流器本身出错时同样拒绝调用。
func RateLimit(l Limiter, key KeyFunc) ioc.Interceptor {
	if key == nil {
		key = MethodKey
	}
	return ioc.InterceptorFunc(func(inv *ioc.Invocation) (any, error) {
		k := key(inv)
		ok, err := l.Allow(inv.Context(), k)
		if err != nil {
			return nil, fmt.Errorf("aspects: limiter %s: %w", k, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, k)
		}
		return inv.Proceed()
	})
}

// LocalLimiter 进程内令牌桶，每个键一个桶。
type LocalLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter 每个 window 补充 n 个令牌，桶容量为 burst。
func NewLocalLimiter(n, burst int, window time.Duration) *LocalLimiter {
	if n <= 0 {
		n = 1
	}
	if burst <= 0 {
		burst = n
	}
	return &LocalLimiter{
		limit:   rate.Every(window / time.Duration(n)),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow(), nil
}

// incrWindow 窗口内首次计数时设置过期时间，兼容没有 EXPIRE NX 的 redis 版本
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// RedisLimiter 基于 redis 的固定窗口计数，多个实例共享配额。
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisLimiter 每个 window 内每个键最多放行 limit 次。
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(limit), window: window, prefix: "bean:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := incrWindow.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}
