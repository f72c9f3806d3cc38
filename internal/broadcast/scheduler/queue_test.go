// internal/broadcast/scheduler/queue_test.go
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*DueQueue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewDueQueue(rdb), mr
}

func TestDueQueue_AddAndDue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Add(ctx, "past", now.Add(-time.Minute)))
	require.NoError(t, q.Add(ctx, "now", now))
	require.NoError(t, q.Add(ctx, "future", now.Add(time.Hour)))

	due, err := q.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"past", "now"}, due)
}

func TestDueQueue_ReAddReschedules(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Add(ctx, "msg-1", now.Add(-time.Minute)))
	require.NoError(t, q.Add(ctx, "msg-1", now.Add(time.Hour)))

	due, err := q.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDueQueue_DueRespectsLimit(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Add(ctx, id, now.Add(-time.Minute)))
	}

	due, err := q.Due(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestDueQueue_ClaimIsExclusive(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	claimed, err := q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDueQueue_ClaimExpires(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	claimed, err := q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	mr.FastForward(2 * time.Minute)

	claimed, err = q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDueQueue_ReleaseFreesClaim(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	claimed, err := q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, q.Release(ctx, "msg-1"))

	claimed, err = q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestDueQueue_RemoveSkipsClaimedMember(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Add(ctx, "msg-1", now.Add(-time.Minute)))
	claimed, err := q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	// The claim wins the cancel race: the member stays queued.
	removed, err := q.Remove(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, removed)

	due, err := q.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-1"}, due)
}

func TestDueQueue_RemoveUnclaimedMember(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Add(ctx, "msg-1", now.Add(-time.Minute)))

	removed, err := q.Remove(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, removed)

	due, err := q.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDueQueue_CompleteDropsMemberAndClaim(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Add(ctx, "msg-1", now.Add(-time.Minute)))
	claimed, err := q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, q.Complete(ctx, "msg-1"))

	due, err := q.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// The claim is gone too.
	claimed, err = q.Claim(ctx, "msg-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}
