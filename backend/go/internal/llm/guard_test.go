package llm

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Complete(ctx context.Context, _ *models.CompletionRequest) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestGuardedPassesThrough(t *testing.T) {
	g := NewGuarded(&fakeProvider{reply: "hola"})
	out, err := g.Complete(context.Background(), &models.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
	assert.Equal(t, "fake-1", ModelName(g))
}

func TestGuardedTimeout(t *testing.T) {
	g := NewGuarded(&fakeProvider{reply: "late", delay: time.Second}, WithTimeout(20*time.Millisecond))
	_, err := g.Complete(context.Background(), &models.CompletionRequest{})
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsDegraded(err))
}

func TestGuardedCallerCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGuarded(&fakeProvider{delay: time.Second})
	_, err := g.Complete(ctx, &models.CompletionRequest{})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsDegraded(err))
}

func TestGuardedDialErrorIsUnavailable(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	g := NewGuarded(&fakeProvider{err: dial})
	_, err := g.Complete(context.Background(), &models.CompletionRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGuardedOpenCircuitIsUnavailable(t *testing.T) {
	fp := &fakeProvider{err: errors.New("500 from upstream")}
	g := NewGuarded(fp, WithBreaker(circuitbreaker.New(1, 1, time.Minute)))

	_, err := g.Complete(context.Background(), &models.CompletionRequest{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))

	_, err = g.Complete(context.Background(), &models.CompletionRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, fp.calls)
}

type pingingProvider struct {
	fakeProvider
	pingErr error
}

func (p *pingingProvider) Ping(context.Context) error { return p.pingErr }

func TestCheckReachable(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, CheckReachable(ctx, NewGuarded(&fakeProvider{}), time.Second))
	assert.NoError(t, CheckReachable(ctx, NewGuarded(&pingingProvider{}), time.Second))

	down := &pingingProvider{pingErr: errors.New("connection refused")}
	err := CheckReachable(ctx, NewGuarded(down), time.Second)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}
