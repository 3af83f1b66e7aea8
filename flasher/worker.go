// Package flasher runs flash operations: a single-slot async worker
// and the staged pipeline that parses, gates, unmounts, and writes.
package flasher

import (
	"context"
	"errors"
	"sync"

	"github.com/justapithecus/freetracer/log"
)

// ErrTaskRunning rejects a dispatch while a task is still running.
var ErrTaskRunning = errors.New("a flash task is already running")

// TaskState is the lifecycle of a dispatched task.
type TaskState int

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskDone
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	case TaskFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Progress counts bytes through the write stage.
type Progress struct {
	BytesWritten int64
	BytesTotal   int64
}

// TaskFunc is the work a task performs. It must honor ctx cancellation
// and may report progress as often as it likes.
type TaskFunc func(ctx context.Context, report func(Progress)) error

// WorkerTask is one dispatched flash operation. State, progress, and
// the terminal error are guarded by a mutex that is never held across
// the task's own work.
type WorkerTask struct {
	mu       sync.Mutex
	state    TaskState
	progress Progress
	err      error

	cancel context.CancelFunc
	// done is closed exactly once when the task reaches a terminal
	// state. Multiple joiners may wait on it.
	done chan struct{}
}

// State returns the task's current state.
func (t *WorkerTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns the task's current byte counters.
func (t *WorkerTask) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Err returns the terminal error, nil until the task fails.
func (t *WorkerTask) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel requests cooperative cancellation. The task transitions to
// Failed once its function observes the cancellation and returns.
func (t *WorkerTask) Cancel() {
	t.cancel()
}

// Join blocks until the task reaches a terminal state and returns its
// terminal error. Safe to call from multiple goroutines; all observe
// the same outcome.
func (t *WorkerTask) Join() error {
	<-t.done
	return t.Err()
}

func (t *WorkerTask) report(p Progress) {
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}

func (t *WorkerTask) finish(err error) {
	t.mu.Lock()
	if err != nil {
		t.state = TaskFailed
		t.err = err
	} else {
		t.state = TaskDone
	}
	t.mu.Unlock()
	close(t.done)
}

// Worker runs at most one task at a time. Dispatching while a task is
// running is an explicit rejection, never a queue.
type Worker struct {
	mu      sync.Mutex
	current *WorkerTask
	logger  *log.Logger
}

// NewWorker creates a worker with no task.
func NewWorker(logger *log.Logger) *Worker {
	return &Worker{logger: logger}
}

// Dispatch starts fn asynchronously and returns its task handle.
// Returns ErrTaskRunning while a previous task is still running.
func (w *Worker) Dispatch(ctx context.Context, fn TaskFunc) (*WorkerTask, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil && w.current.State() == TaskRunning {
		return nil, ErrTaskRunning
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := &WorkerTask{
		state:  TaskRunning,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.current = task

	go func() {
		defer cancel()
		err := fn(taskCtx, task.report)
		if err != nil {
			w.logger.Error("flash task failed", map[string]any{
				"error": err.Error(),
			})
		}
		task.finish(err)
	}()

	return task, nil
}

// Status returns the most recently dispatched task, nil before the
// first dispatch.
func (w *Worker) Status() *WorkerTask {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}
