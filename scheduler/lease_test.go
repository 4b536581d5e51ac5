package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLease_ExclusiveUntilReleased(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	first := NewRedisLease(client, nil)
	second := NewRedisLease(client, nil)
	require.NotEqual(t, first.Owner(), second.Owner())

	release, ok, err := first.Acquire(ctx, PassExpertCheck, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	val, err := mr.Get("sa3tha:followup:lease:" + PassExpertCheck)
	require.NoError(t, err)
	assert.Equal(t, first.Owner(), val)

	_, ok, err = second.Acquire(ctx, PassExpertCheck, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = second.Acquire(ctx, PassReviewRequest, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "leases are per pass")

	release()
	_, ok, err = second.Acquire(ctx, PassExpertCheck, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLease_ExpiresAndStaleReleaseIsHarmless(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	first := NewRedisLease(client, nil)
	second := NewRedisLease(client, nil)

	staleRelease, ok, err := first.Acquire(ctx, PassStaleAudit, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	_, ok, err = second.Acquire(ctx, PassStaleAudit, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// the first owner's late release must not drop the second owner's lease
	staleRelease()
	val, err := mr.Get("sa3tha:followup:lease:" + PassStaleAudit)
	require.NoError(t, err)
	assert.Equal(t, second.Owner(), val)
}

func TestRedisLease_ErrorWhenRedisIsDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	_, ok, err := NewRedisLease(client, nil).Acquire(context.Background(), PassExpertCheck, time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisLease_FailedReleaseIsLogged(t *testing.T) {
	mr, client := newTestRedis(t)
	core, logs := observer.New(zapcore.WarnLevel)
	lease := NewRedisLease(client, zap.New(core))

	release, ok, err := lease.Acquire(context.Background(), PassReviewRequest, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.Close()
	release()

	entries := logs.FilterMessage("failed to release lease").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, PassReviewRequest, entries[0].ContextMap()["lease"])
}

func TestRedisLease_CleanReleaseLogsNothing(t *testing.T) {
	_, client := newTestRedis(t)
	core, logs := observer.New(zapcore.WarnLevel)
	lease := NewRedisLease(client, zap.New(core))

	release, ok, err := lease.Acquire(context.Background(), PassReviewRequest, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	release()

	assert.Zero(t, logs.Len())
}
