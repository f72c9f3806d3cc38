// internal/broadcast/scheduler/queue.go
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dueQueueKey    = "broadcast:due"
	claimKeyPrefix = "broadcast:claim:"
)

// DueQueue is the durable schedule keyed by due time. Members are message
// ids scored by their dateScheduled unix timestamp. Claims are SET NX keys
// with a TTL: a worker that crashes mid-dispatch lets its claim expire, and
// the still-present member is retried on a later poll.
type DueQueue struct {
	rdb *redis.Client
}

func NewDueQueue(rdb *redis.Client) *DueQueue {
	return &DueQueue{rdb: rdb}
}

// Add enqueues the message at its due time. Re-adding overwrites the score,
// which is what rescheduling wants.
func (q *DueQueue) Add(ctx context.Context, messageID string, due time.Time) error {
	err := q.rdb.ZAdd(ctx, dueQueueKey, redis.Z{
		Score:  float64(due.Unix()),
		Member: messageID,
	}).Err()
	if err != nil {
		return fmt.Errorf("due-queue add: %w", err)
	}
	return nil
}

// Remove takes an unclaimed message out of the queue. When the message is
// already claimed the removal is skipped and false is returned; the claim
// wins that race and dispatch proceeds.
func (q *DueQueue) Remove(ctx context.Context, messageID string) (bool, error) {
	claimed, err := q.rdb.Exists(ctx, claimKeyPrefix+messageID).Result()
	if err != nil {
		return false, fmt.Errorf("due-queue claim check: %w", err)
	}
	if claimed > 0 {
		return false, nil
	}
	removed, err := q.rdb.ZRem(ctx, dueQueueKey, messageID).Result()
	if err != nil {
		return false, fmt.Errorf("due-queue remove: %w", err)
	}
	return removed > 0, nil
}

// Due returns up to limit message ids whose due time is at or before now.
func (q *DueQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, dueQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("due-queue range: %w", err)
	}
	return ids, nil
}

// Claim marks the message as being dispatched. Returns false when another
// worker holds the claim.
func (q *DueQueue) Claim(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	ok, err := q.rdb.SetNX(ctx, claimKeyPrefix+messageID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("due-queue claim: %w", err)
	}
	return ok, nil
}

// Release drops the claim without removing the member, so the message is
// eligible for the next poll.
func (q *DueQueue) Release(ctx context.Context, messageID string) error {
	if err := q.rdb.Del(ctx, claimKeyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("due-queue release: %w", err)
	}
	return nil
}

// Complete removes the member and its claim after a finished dispatch.
func (q *DueQueue) Complete(ctx context.Context, messageID string) error {
	if err := q.rdb.ZRem(ctx, dueQueueKey, messageID).Err(); err != nil {
		return fmt.Errorf("due-queue complete: %w", err)
	}
	if err := q.rdb.Del(ctx, claimKeyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("due-queue complete: %w", err)
	}
	return nil
}
