package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// a handler that fails on every message must not stop the worker from
// draining its queue
func TestWorkerDrainsThroughHandlerFailures(t *testing.T) {
	const n = 8
	c := &Consumer{workers: 1}
	jobs := make(chan kafka.Message, n)
	for i := 0; i < n; i++ {
		jobs <- kafka.Message{Offset: int64(i)}
	}
	close(jobs)

	var calls int32
	done := make(chan struct{})
	go func() {
		c.work(context.Background(), jobs, func(ctx context.Context, m kafka.Message) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(n*errBackoff + 5*time.Second):
		t.Fatal("worker stalled on handler errors")
	}
	require.EqualValues(t, n, atomic.LoadInt32(&calls))
}
