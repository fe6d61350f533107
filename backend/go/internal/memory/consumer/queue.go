// Package consumer moves exchanges from the chat turn to fact extraction
// without making the turn wait for it.
package consumer

import (
	"context"
	"errors"
	"sync"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/logger"
)

// ErrQueueFull is returned by Enqueue when the exchange was dropped.
var ErrQueueFull = errors.New("fact extraction queue is full")

// Queue accepts exchanges for background extraction.
type Queue interface {
	Enqueue(ctx context.Context, ex models.Exchange) error
}

// Handler processes one exchange.
type Handler interface {
	Ingest(ctx context.Context, ex models.Exchange) error
}

// InProcessQueue is a bounded channel drained by a fixed worker pool.
// Delivery is best-effort: a full queue drops the exchange.
type InProcessQueue struct {
	ch      chan models.Exchange
	workers int
	log     *logger.Logger
	wg      sync.WaitGroup
}

// NewInProcessQueue creates a queue holding up to size exchanges.
func NewInProcessQueue(size, workers int, log *logger.Logger) *InProcessQueue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &InProcessQueue{ch: make(chan models.Exchange, size), workers: workers, log: log}
}

// Enqueue never blocks.
func (q *InProcessQueue) Enqueue(_ context.Context, ex models.Exchange) error {
	select {
	case q.ch <- ex:
		return nil
	default:
		q.log.WithTrace(ex.ConversationID).Warn("fact extraction queue full, exchange dropped")
		return ErrQueueFull
	}
}

// Start launches the workers. They stop when ctx is done; Wait blocks until they have.
func (q *InProcessQueue) Start(ctx context.Context, h Handler) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ex := <-q.ch:
					if err := h.Ingest(ctx, ex); err != nil {
						q.log.WithTrace(ex.ConversationID).WithErr(err).Warn("fact extraction failed")
					}
				}
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (q *InProcessQueue) Wait() {
	q.wg.Wait()
}

// Len reports the number of queued exchanges.
func (q *InProcessQueue) Len() int {
	return len(q.ch)
}
