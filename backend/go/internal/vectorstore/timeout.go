package vectorstore

import (
	"context"
	"time"
)

// HealthChecker is implemented by indexes that talk to a remote server.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck asks idx whether its backend is reachable. In-process indexes
// are always healthy.
func HealthCheck(ctx context.Context, idx Index) error {
	if hc, ok := idx.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

type timeoutIndex struct {
	next    Index
	timeout time.Duration
}

// WithTimeout bounds every call on next by d. A non-positive d returns next
// unchanged.
func WithTimeout(next Index, d time.Duration) Index {
	if d <= 0 {
		return next
	}
	return &timeoutIndex{next: next, timeout: d}
}

func (t *timeoutIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Upsert(ctx, collection, points)
}

func (t *timeoutIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Search(ctx, collection, vector, limit)
}

func (t *timeoutIndex) Delete(ctx context.Context, collection string, ids []string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Delete(ctx, collection, ids)
}

func (t *timeoutIndex) CollectionInfo(ctx context.Context, collection string) (CollectionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.CollectionInfo(ctx, collection)
}

func (t *timeoutIndex) DropCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DropCollection(ctx, collection)
}

func (t *timeoutIndex) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return HealthCheck(ctx, t.next)
}
