package workers

import (
	"context"
	"testing"

	"pong-platform/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// startRedis spins up a throwaway Redis container for stream tests.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func addEvent(t *testing.T, rdb *redis.Client, stream, payload string) string {
	t.Helper()
	id, err := rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"payload": payload},
	}).Result()
	require.NoError(t, err)
	return id
}

func pendingCount(t *testing.T, rdb *redis.Client, stream, group string) int64 {
	t.Helper()
	pending, err := rdb.XPending(context.Background(), stream, group).Result()
	require.NoError(t, err)
	return pending.Count
}

func TestConsumeAcksOnlyAfterLocalWrite(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	players, db := newPlayersStore(t)
	c := NewUserEventConsumer(rdb, players, "user-events", "pong-platform", "consumer-1")
	require.NoError(t, c.ensureGroup(ctx))

	addEvent(t, rdb, c.stream, `{"type":"CREATED","id":7,"username":"ada","timestamp":1700000000000}`)
	require.NoError(t, c.consume(ctx))

	var p models.Player
	require.NoError(t, db.First(&p, "id = ?", 7).Error)
	assert.Equal(t, "ada", p.Username)
	assert.Equal(t, int64(0), pendingCount(t, rdb, c.stream, c.group),
		"entry is acknowledged once the write landed")
}

func TestReclaimRedeliversEntryLeftPending(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	// A consumer whose local store is down reads the entry but cannot
	// apply it, so the entry must stay pending for recovery.
	brokenPlayers, brokenDB := newPlayersStore(t)
	sqlDB, err := brokenDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	crashed := NewUserEventConsumer(rdb, brokenPlayers, "user-events", "pong-platform", "crashed")
	require.NoError(t, crashed.ensureGroup(ctx))
	addEvent(t, rdb, crashed.stream, `{"type":"CREATED","id":9,"username":"grace","timestamp":1700000000000}`)
	require.NoError(t, crashed.consume(ctx))

	require.Equal(t, int64(1), pendingCount(t, rdb, crashed.stream, crashed.group),
		"failed write leaves the entry unacknowledged")

	// A healthy consumer's recovery pass claims the stalled entry,
	// applies it and acknowledges it.
	players, db := newPlayersStore(t)
	healthy := NewUserEventConsumer(rdb, players, crashed.stream, crashed.group, "healthy")
	healthy.minIdle = 0
	healthy.reclaim(ctx)

	var p models.Player
	require.NoError(t, db.First(&p, "id = ?", 9).Error)
	assert.Equal(t, "grace", p.Username)
	assert.Equal(t, int64(0), pendingCount(t, rdb, healthy.stream, healthy.group))

	// A second pass finds nothing to redeliver.
	healthy.reclaim(ctx)
	var count int64
	require.NoError(t, db.Model(&models.Player{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "reclaimed entry is reprocessed exactly once")
}
