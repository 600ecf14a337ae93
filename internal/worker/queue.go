package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Processor runs the conversation pipeline for one stored message.
type Processor interface {
	Process(ctx context.Context, waMessageID string) error
}

// Dispatcher hands a stored message off for asynchronous processing. The
// webhook handler never waits for the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, waMessageID string) error
}

// ErrQueueFull is returned when the in-process queue cannot accept more work.
var ErrQueueFull = errors.New("worker queue full")

// ErrQueueClosed is returned when dispatching after shutdown began.
var ErrQueueClosed = errors.New("worker queue closed")

// Queue is an in-process dispatcher: a buffered channel drained by a fixed
// pool of goroutines. Delivery is at-least-once; the processor's own
// idempotency makes redelivery safe.
type Queue struct {
	jobs      chan string
	processor Processor
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates the queue and starts concurrency consumer goroutines.
func NewQueue(processor Processor, size, concurrency int, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	q := &Queue{
		jobs:      make(chan string, size),
		processor: processor,
		logger:    logger,
	}
	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go q.consume()
	}
	return q
}

// Dispatch enqueues without blocking. A full queue is an error the caller
// can log; the provider will redeliver the webhook.
func (q *Queue) Dispatch(ctx context.Context, waMessageID string) error {
	// The send happens under the same lock Shutdown closes the channel
	// under, so a racing Dispatch can never hit a closed channel.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- waMessageID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) consume() {
	defer q.wg.Done()
	for waMessageID := range q.jobs {
		// Each job gets its own deadline so a stuck extraction cannot
		// starve the pool.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := q.processor.Process(ctx, waMessageID); err != nil {
			q.logger.Error("message processing failed",
				zap.String("wa_message_id", waMessageID),
				zap.Error(err))
		}
		cancel()
	}
}

// Shutdown stops accepting work and drains the queue. It returns once all
// in-flight jobs finish or the context expires.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
