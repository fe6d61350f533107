package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/logger"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu  sync.Mutex
	got []models.Exchange
}

func (h *recordingHandler) Ingest(_ context.Context, ex models.Exchange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, ex)
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.got)
}

func TestInProcessQueueDropsWhenFull(t *testing.T) {
	q := NewInProcessQueue(1, 1, logger.Discard())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, models.Exchange{UserText: "a"}))
	require.ErrorIs(t, q.Enqueue(ctx, models.Exchange{UserText: "b"}), ErrQueueFull)
	assert.Equal(t, 1, q.Len())
}

func TestInProcessQueueDelivers(t *testing.T) {
	q := NewInProcessQueue(10, 2, logger.Discard())
	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx, h)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, models.Exchange{UserText: "x"}))
	}
	require.Eventually(t, func() bool { return h.count() == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	q.Wait()
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []kafkago.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestKafkaConsumerCommitsEveryMessage(t *testing.T) {
	good, err := json.Marshal(models.Exchange{UserText: "me llamo Ana", ConversationID: "c1"})
	require.NoError(t, err)
	r := &fakeReader{msgs: []kafkago.Message{{Value: []byte("not json")}, {Value: good}}}
	h := &recordingHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	c := newKafkaConsumer(r, h, logger.Discard())
	c.Start(ctx)

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-c.Done()

	require.Equal(t, 1, h.count())
	assert.Equal(t, "c1", h.got[0].ConversationID)
	assert.True(t, r.closed)
}

