package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizpipe/vizpipe/pkg/ast"
	redisadapter "github.com/vizpipe/vizpipe/pkg/adapters/redis"
	"github.com/vizpipe/vizpipe/pkg/ports"
)

var _ ports.ExpressionCache = (*redisadapter.Cache)(nil)

func newTestCache(t *testing.T, opts ...redisadapter.Option) (*redisadapter.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	cache := redisadapter.NewFromClient(client, opts...)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	expr, err := ast.Parse(`load index=logs | filter query={match field=status value=200} | chart`)
	require.NoError(t, err)

	require.NoError(t, cache.Put(ctx, "fp-1", expr))

	got, err := cache.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, expr, got)
}

func TestCache_MissReturnsNil(t *testing.T) {
	cache, _ := newTestCache(t)

	got, err := cache.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_TTLExpiration(t *testing.T) {
	cache, mr := newTestCache(t, redisadapter.WithTTL(time.Second))
	ctx := context.Background()

	expr, err := ast.Parse("chart")
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "fp-ttl", expr))

	got, err := cache.Get(ctx, "fp-ttl")
	require.NoError(t, err)
	require.NotNil(t, got)

	// miniredis expires keys on FastForward rather than wall-clock time.
	mr.FastForward(2 * time.Second)

	got, err = cache.Get(ctx, "fp-ttl")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_PrefixIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	a := redisadapter.NewFromClient(client, redisadapter.WithPrefix("a:"))
	b := redisadapter.NewFromClient(client, redisadapter.WithPrefix("b:"))

	ctx := context.Background()
	expr, err := ast.Parse("chart")
	require.NoError(t, err)

	require.NoError(t, a.Put(ctx, "shared", expr))

	got, err := b.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Nil(t, got, "prefixes must not collide")
}
