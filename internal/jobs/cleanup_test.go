package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePurger struct {
	calls atomic.Int32
	count int64
	err   error
}

func (f *fakePurger) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return f.count, f.err
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(nil, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("starts and stops without panic", func(t *testing.T) {
		job := NewCleanupJob(&fakePurger{}, 100*time.Millisecond)

		job.Start()
		time.Sleep(50 * time.Millisecond)
		job.Stop()
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		purger := &fakePurger{count: 6}
		job := NewCleanupJob(purger, time.Hour)

		job.Start()
		assert.Eventually(t, func() bool { return purger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("keeps ticking after a failure", func(t *testing.T) {
		purger := &fakePurger{err: errors.New("db down")}
		job := NewCleanupJob(purger, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("nil purger is skipped", func(t *testing.T) {
		job := NewCleanupJob(nil, time.Hour)
		assert.NotPanics(t, job.cleanup)
	})
}
