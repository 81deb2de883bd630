package temporal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Worker option defaults.
const (
	defaultMaxConcurrentActivities    = 20
	defaultMaxConcurrentWorkflowTasks = 50
	defaultActivityTaskPollers        = 4
	defaultWorkflowTaskPollers        = 2
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize bounds concurrent activities. Each
	// stage activity holds model and search calls open, so the default is
	// lower than the SDK's.
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize bounds concurrent workflow tasks.
	MaxConcurrentWorkflowTaskExecutionSize int

	// MaxConcurrentActivityTaskPollers is the number of activity task pollers.
	MaxConcurrentActivityTaskPollers int

	// MaxConcurrentWorkflowTaskPollers is the number of workflow task pollers.
	MaxConcurrentWorkflowTaskPollers int
}

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     defaultMaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: defaultMaxConcurrentWorkflowTasks,
		MaxConcurrentActivityTaskPollers:       defaultActivityTaskPollers,
		MaxConcurrentWorkflowTaskPollers:       defaultWorkflowTaskPollers,
	}
}

// workerOptions builds worker.Options, applying defaults for zero fields.
func (c WorkerConfig) workerOptions() worker.Options {
	d := DefaultWorkerConfig(c.TaskQueue)
	if c.MaxConcurrentActivityExecutionSize == 0 {
		c.MaxConcurrentActivityExecutionSize = d.MaxConcurrentActivityExecutionSize
	}
	if c.MaxConcurrentWorkflowTaskExecutionSize == 0 {
		c.MaxConcurrentWorkflowTaskExecutionSize = d.MaxConcurrentWorkflowTaskExecutionSize
	}
	if c.MaxConcurrentActivityTaskPollers == 0 {
		c.MaxConcurrentActivityTaskPollers = d.MaxConcurrentActivityTaskPollers
	}
	if c.MaxConcurrentWorkflowTaskPollers == 0 {
		c.MaxConcurrentWorkflowTaskPollers = d.MaxConcurrentWorkflowTaskPollers
	}

	return worker.Options{
		MaxConcurrentActivityExecutionSize:     c.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: c.MaxConcurrentWorkflowTaskExecutionSize,
		MaxConcurrentActivityTaskPollers:       c.MaxConcurrentActivityTaskPollers,
		MaxConcurrentWorkflowTaskPollers:       c.MaxConcurrentWorkflowTaskPollers,
	}
}

// Registrar is the registration surface shared by worker.Worker and the
// test workflow environment.
type Registrar interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// WorkerManager manages the lifecycle of a Temporal worker.
type WorkerManager struct {
	worker     worker.Worker
	taskQueue  string
	logger     zerolog.Logger
	workflows  int
	activities int
}

// NewWorkerManager creates a new WorkerManager with the given configuration.
func NewWorkerManager(c client.Client, config WorkerConfig, logger zerolog.Logger) (*WorkerManager, error) {
	if config.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}

	return &WorkerManager{
		worker:    worker.New(c, config.TaskQueue, config.workerOptions()),
		taskQueue: config.TaskQueue,
		logger:    logger.With().Str("component", "temporal-worker").Str("task_queue", config.TaskQueue).Logger(),
	}, nil
}

// RegisterWorkflow registers a workflow function.
func (m *WorkerManager) RegisterWorkflow(workflow interface{}) {
	m.workflows++
	m.worker.RegisterWorkflow(workflow)
}

// RegisterActivity registers an activity function or a struct whose exported
// methods are activities.
func (m *WorkerManager) RegisterActivity(activity interface{}) {
	m.activities++
	m.worker.RegisterActivity(activity)
}

// Worker returns the underlying Temporal worker.
func (m *WorkerManager) Worker() worker.Worker {
	return m.worker
}

// TaskQueue returns the configured task queue name.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Start runs the worker and blocks until ctx is cancelled or the worker
// stops on its own.
func (m *WorkerManager) Start(ctx context.Context) error {
	m.logger.Info().
		Int("workflows", m.workflows).
		Int("activities", m.activities).
		Msg("starting temporal worker")
	err := RunWorker(ctx, m.worker)
	m.logger.Info().Err(err).Msg("temporal worker stopped")
	return err
}

// Stop stops the worker gracefully.
func (m *WorkerManager) Stop() {
	m.worker.Stop()
}

// Runner is the part of worker.Worker that RunWorker needs.
type Runner interface {
	Run(interruptCh <-chan interface{}) error
}

// RunWorker runs w until ctx is cancelled. A clean shutdown after
// cancellation returns ctx.Err().
func RunWorker(ctx context.Context, w Runner) error {
	interruptCh := make(chan interface{}, 1)
	stop := context.AfterFunc(ctx, func() {
		interruptCh <- struct{}{}
	})
	defer stop()

	if err := w.Run(interruptCh); err != nil {
		return err
	}
	return ctx.Err()
}
