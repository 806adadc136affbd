package schedule

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/astremo/cloudpull/pkg/cancel"
)

// State describes where a task is in its lifecycle. There is no transition
// back from any terminal state.
type State int

const (
	StatePending State = iota
	StateRunning
	StateDoneOK
	StateDoneError
	StateDoneCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDoneOK:
		return "done"
	case StateDoneError:
		return "error"
	case StateDoneCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Task is one tracked asynchronous unit of work. It is created by
// Scheduler.Launch and owned by the scheduler until its result has been
// reaped.
type Task struct {
	id    uuid.UUID
	name  string
	token *cancel.Token

	running atomic.Bool
	done    chan struct{}
	err     error // written once before done is closed
	reaped  bool  // owner goroutine only
}

func newTask(name string) *Task {
	return &Task{
		id:    uuid.New(),
		name:  name,
		token: cancel.NewToken(),
		done:  make(chan struct{}),
	}
}

// ID returns the task's identity.
func (t *Task) ID() uuid.UUID { return t.id }

// Name returns the human-readable task name used in logs.
func (t *Task) Name() string { return t.name }

// Token returns the cancellation token shared with the task's work
// function and every nested I/O step.
func (t *Task) Token() *cancel.Token { return t.token }

// Cancel requests cancellation. The task reaches DoneCancelled at its next
// checkpoint observation; Cancel itself does not block.
func (t *Task) Cancel() { t.token.Cancel() }

// Done returns a channel closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// State reports the task's current lifecycle state.
func (t *Task) State() State {
	select {
	case <-t.done:
	default:
		if t.running.Load() {
			return StateRunning
		}
		return StatePending
	}
	switch {
	case errors.Is(t.err, cancel.ErrCancelled):
		return StateDoneCancelled
	case t.err != nil:
		return StateDoneError
	default:
		return StateDoneOK
	}
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// finish records the terminal result. Called exactly once, from the task's
// goroutine.
func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// takeResult consumes the terminal result. Owner goroutine only, once per
// task.
func (t *Task) takeResult() error {
	if t.reaped {
		return nil
	}
	t.reaped = true
	return t.err
}
