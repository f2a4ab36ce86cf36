package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"github.com/gocrud/modkit/redis"
)

// CacheService 模拟依赖 Redis 客户端的服务
type CacheService struct {
	Cache *goredis.Client `di:"redis.cache"`
	Queue *goredis.Client `di:"redis.queue,?"`
	Other *goredis.Client `di:"redis.missing,?"`
}

func offline(addr string) func(*redis.ClientOptions) {
	return func(o *redis.ClientOptions) {
		o.Addr = addr
		o.PingOnStart = false
	}
}

func TestRedisModule(t *testing.T) {
	root := core.NewModule("Root",
		core.Imports(redis.NewModule(
			redis.WithClient("cache", offline("127.0.0.1:6390")),
			redis.WithClient("queue", offline("127.0.0.1:6391"), func(o *redis.ClientOptions) { o.DB = 2 }),
		)),
		core.Providers(di.Class[*CacheService](nil, di.WithSingleton())),
	)
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))

	svc, err := di.Resolve[*CacheService](ctx, app, nil)
	require.NoError(t, err)
	require.NotNil(t, svc.Cache)
	require.NotNil(t, svc.Queue)
	assert.Nil(t, svc.Other)
	assert.Equal(t, "127.0.0.1:6390", svc.Cache.Options().Addr)
	assert.Equal(t, 2, svc.Queue.Options().DB)

	named, err := di.ResolveToken(ctx, app, redis.Named("queue"), nil)
	require.NoError(t, err)
	assert.Same(t, svc.Queue, named)

	// 未配置 "default" 时第一个客户端作为默认客户端
	def, err := di.Resolve[*goredis.Client](ctx, app, nil)
	require.NoError(t, err)
	assert.Same(t, svc.Cache, def)

	factory, err := di.Resolve[*redis.Factory](ctx, app, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "queue"}, factory.Names())

	require.NoError(t, app.Stop(ctx))
	assert.ErrorIs(t, svc.Cache.Ping(ctx).Err(), goredis.ErrClosed)
}

func TestNamedTokensAreStable(t *testing.T) {
	assert.Same(t, redis.Named("cache"), redis.Named("cache"))
	assert.NotSame(t, redis.Named("cache"), redis.Named("queue"))
	assert.Equal(t, "redis.cache", redis.Key("cache"))
}

func TestBuilderErrors(t *testing.T) {
	builder := redis.NewBuilder()

	// 添加无效配置
	builder.AddClient("invalid", func(o *redis.ClientOptions) {
		o.Addr = ""
	})
	// 添加重复配置
	builder.AddClient("duplicate", nil)
	builder.AddClient("duplicate", nil)

	_, err := builder.Build(context.Background(), logging.Nop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "address is required")
	assert.ErrorContains(t, err, "already configured")
	assert.Equal(t, []string{"duplicate"}, builder.Names())
}

func TestDefaultClientName(t *testing.T) {
	b := redis.NewBuilder()
	assert.Equal(t, "", b.Default())
	b.AddClient("cache", nil).AddClient(redis.DefaultName, nil)
	assert.Equal(t, redis.DefaultName, b.Default())
}

func TestWithOptionsKeepsDefaults(t *testing.T) {
	root := core.NewModule("Root", core.Imports(redis.NewModule(
		redis.WithOptions(redis.ClientOptions{Name: "sessions", DB: 3}),
	)))
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))

	client, err := di.ResolveToken(ctx, app, redis.Named("sessions"), nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", client.Options().Addr)
	assert.Equal(t, 3, client.Options().DB)
	assert.Equal(t, 5*time.Second, client.Options().DialTimeout)
	require.NoError(t, app.Stop(ctx))
}

func TestPingFailureAbortsInit(t *testing.T) {
	root := core.NewModule("Root", core.Imports(redis.NewModule(
		redis.WithClient("cache", func(o *redis.ClientOptions) {
			o.Addr = "127.0.0.1:1"
			o.DialTimeout = 200 * time.Millisecond
			o.MaxRetries = -1
		}),
	)))
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	assert.ErrorContains(t, app.Init(context.Background()), "failed to connect to redis 'cache'")
}

func TestLiveRedis(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	root := core.NewModule("Root", core.Imports(redis.NewModule(
		redis.WithClient(redis.DefaultName, func(o *redis.ClientOptions) { o.Addr = addr }),
	)))
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))
	defer func() { _ = app.Stop(ctx) }()

	client, err := di.Resolve[*goredis.Client](ctx, app, nil)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "modkit:test", "ok", time.Minute).Err())
	v, err := client.Get(ctx, "modkit:test").Result()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
