package service

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when the submit path cannot take more work.
var ErrQueueFull = errors.New("queue full")

// ErrEmpty is returned by Claim when nothing arrived within the timeout.
var ErrEmpty = errors.New("queue empty")

// Queue hands digests from the submit path to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, digest string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, digest string) error
}

// memoryQueue is the default in-process queue: a bounded channel, so a
// full queue pushes back on submitters instead of spawning unbounded work.
type memoryQueue struct {
	ch chan string
}

func NewMemoryQueue(size int) Queue {
	if size <= 0 {
		size = 64
	}
	return &memoryQueue{ch: make(chan string, size)}
}

func (q *memoryQueue) Enqueue(ctx context.Context, digest string) error {
	select {
	case q.ch <- digest:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *memoryQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case digest := <-q.ch:
		return digest, nil
	case <-timer.C:
		return "", ErrEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *memoryQueue) Ack(ctx context.Context, digest string) error { return nil }
