package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("reports", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "1"}))
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	var observed int32
	done := make(chan struct{})
	handler := func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}
	q := NewQueue("reports", handler, QueueConfig{
		MaxRetries: 5,
		RetryDelay: 5 * time.Millisecond,
		Observer: func(Job, error, time.Duration) {
			atomic.AddInt32(&observed, 1)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "class_semester"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&observed) == 3 }, time.Second, 5*time.Millisecond)
}
