package worker

import (
	"context"
	"log"
	"time"

	"bird-analysis-service/internal/service"
)

// Pool runs N runners off a shared channel. Concurrency is capped by
// the worker count; a full queue pushes back on submitters instead of
// spawning a goroutine per job.
type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
}

func NewPool(queue service.Queue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

func (p *Pool) Run(ctx context.Context) {
	log.Printf("[pool] started workers=%d", p.workers)

	digestCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for digest := range digestCh {
				if err := p.processor.Process(ctx, digest); err != nil {
					log.Printf("[worker-%d] digest=%s error=%v", n, digest, err)
				}

				// Ack regardless: the outcome is already recorded on
				// the job, so redelivery would be wasted work.
				if err := p.queue.Ack(ctx, digest); err != nil {
					log.Printf("[worker-%d] digest=%s ack error=%v", n, digest, err)
				}
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(digestCh)
			log.Println("[pool] stopped")
			return
		default:
			digest, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// empty queue or ctx cancel, neither is fatal
				continue
			}
			select {
			case digestCh <- digest:
			case <-ctx.Done():
				close(digestCh)
				return
			}
		}
	}
}
