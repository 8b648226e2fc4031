package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisQueue is a reliable queue on Redis lists for deployments that
// want the backlog to survive the API process.
// Claim: BRPOPLPUSH queue -> processing. Ack: LREM from processing.
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, digest string) error {
	return q.rdb.LPush(ctx, q.queueKey, digest).Err()
}

func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	digest, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	return digest, nil
}

func (q *redisQueue) Ack(ctx context.Context, digest string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, digest).Err()
}

// RequeueStale moves claimed digests back onto the queue. Run it
// periodically so digests claimed by a crashed worker are retried.
func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		_, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, err
		}
		moved++
	}
	return moved, nil
}
