package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig("research-tasks")

	assert.Equal(t, "research-tasks", cfg.TaskQueue)
	assert.Equal(t, 20, cfg.MaxConcurrentActivityExecutionSize)
	assert.Equal(t, 50, cfg.MaxConcurrentWorkflowTaskExecutionSize)
	assert.Equal(t, 4, cfg.MaxConcurrentActivityTaskPollers)
	assert.Equal(t, 2, cfg.MaxConcurrentWorkflowTaskPollers)
}

func TestWorkerConfig_WorkerOptions(t *testing.T) {
	t.Run("zero values get defaults", func(t *testing.T) {
		opts := WorkerConfig{}.workerOptions()

		assert.Equal(t, 20, opts.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 50, opts.MaxConcurrentWorkflowTaskExecutionSize)
		assert.Equal(t, 4, opts.MaxConcurrentActivityTaskPollers)
		assert.Equal(t, 2, opts.MaxConcurrentWorkflowTaskPollers)
	})

	t.Run("partial zero values get defaults selectively", func(t *testing.T) {
		opts := WorkerConfig{
			MaxConcurrentActivityExecutionSize: 5,
			MaxConcurrentActivityTaskPollers:   6,
		}.workerOptions()

		assert.Equal(t, 5, opts.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 50, opts.MaxConcurrentWorkflowTaskExecutionSize)
		assert.Equal(t, 6, opts.MaxConcurrentActivityTaskPollers)
		assert.Equal(t, 2, opts.MaxConcurrentWorkflowTaskPollers)
	})
}

func TestNewWorkerManager_RequiresTaskQueue(t *testing.T) {
	_, err := NewWorkerManager(nil, WorkerConfig{}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task queue is required")
}

// fakeRunner blocks until interrupted or returns err immediately.
type fakeRunner struct {
	err         error
	interrupted bool
}

func (f *fakeRunner) Run(interruptCh <-chan interface{}) error {
	if f.err != nil {
		return f.err
	}
	<-interruptCh
	f.interrupted = true
	return nil
}

func TestRunWorker(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		r := &fakeRunner{}
		err := RunWorker(ctx, r)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.True(t, r.interrupted)
	})

	t.Run("returns worker error", func(t *testing.T) {
		boom := errors.New("worker crashed")
		err := RunWorker(context.Background(), &fakeRunner{err: boom})
		assert.Equal(t, boom, err)
	})
}
