package schedule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/astremo/cloudpull/pkg/cancel"
)

// FrameHook is the host's per-frame handler registry. Handlers are found by
// stable name, so registering the same name twice is impossible.
type FrameHook interface {
	Add(name string, fn func())
	Remove(name string)
	Contains(name string) bool
}

// TaskFunc is the work function of a task. It runs on its own goroutine and
// must observe tok at bounded intervals. Returning cancel.ErrCancelled
// marks the task cancelled rather than failed.
type TaskFunc func(tok *cancel.Token) error

// Scheduler owns the set of in-flight tasks and advances them from the
// host's frame callback. Not safe for concurrent use: all methods belong to
// the owning goroutine.
type Scheduler struct {
	hook     FrameHook
	hookName string
	log      *slog.Logger

	tasks   map[uuid.UUID]*Task
	tickFns []func()
}

// New creates a scheduler that registers itself with the given hook. A nil
// hook is allowed for hosts that call Advance directly.
func New(hook FrameHook, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		hook:     hook,
		hookName: "cloudpull.advance",
		log:      logger.With("component", "schedule"),
		tasks:    make(map[uuid.UUID]*Task),
	}
}

// OnTick registers fn to run once per Advance while the scheduler is
// active. Used to drain progress bridges on the owning goroutine.
func (s *Scheduler) OnTick(fn func()) {
	s.tickFns = append(s.tickFns, fn)
}

// Launch registers a new task and starts its work function on a fresh
// goroutine. The scheduler activates itself with the frame hook if it was
// idle.
func (s *Scheduler) Launch(name string, fn TaskFunc) *Task {
	t := newTask(name)
	s.tasks[t.id] = t
	s.log.Debug("task launched", "task", name, "id", t.id)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.finish(fmt.Errorf("task %s panicked: %v", name, r))
			}
		}()
		t.running.Store(true)
		t.finish(fn(t.token))
	}()

	s.EnsureActive()
	return t
}

// Advance performs one scheduler tick. Safe to call every frame regardless
// of state: an idle scheduler deactivates itself and returns, a busy one
// polls its tasks without blocking, and a finished one reaps results
// exactly once. Errors from tasks are logged here and never re-raised.
func (s *Scheduler) Advance() {
	for _, fn := range s.tickFns {
		fn()
	}

	if len(s.tasks) == 0 {
		s.log.Debug("no more scheduled tasks, stopping")
		s.Deactivate()
		return
	}

	for _, t := range s.tasks {
		if !t.finished() {
			// At least one task still running: nothing to reap, and
			// the task makes progress on its own goroutine.
			return
		}
	}

	s.log.Debug("all tasks are done, fetching results and stopping")
	for id, t := range s.tasks {
		err := t.takeResult()
		switch {
		case errors.Is(err, cancel.ErrCancelled):
			// No problem, we wanted to stop anyway.
			s.log.Info("task cancelled", "task", t.name, "id", id)
		case err != nil:
			s.log.Error("task resulted in error", "task", t.name, "id", id, "err", err)
		default:
			s.log.Debug("task finished", "task", t.name, "id", id)
		}
		delete(s.tasks, id)
	}
	s.Deactivate()
}

// EnsureActive registers the per-frame callback with the host hook.
// Idempotent: a scheduler that is already registered stays registered once.
func (s *Scheduler) EnsureActive() {
	if s.hook == nil || s.hook.Contains(s.hookName) {
		return
	}
	s.hook.Add(s.hookName, s.Advance)
}

// Deactivate removes the per-frame callback. Idempotent.
func (s *Scheduler) Deactivate() {
	if s.hook == nil || !s.hook.Contains(s.hookName) {
		return
	}
	s.hook.Remove(s.hookName)
}

// Active reports whether the scheduler is currently registered with the
// host hook.
func (s *Scheduler) Active() bool {
	return s.hook != nil && s.hook.Contains(s.hookName)
}

// TaskCount returns the number of unreaped tasks.
func (s *Scheduler) TaskCount() int {
	return len(s.tasks)
}

// CancelAll requests cancellation of every registered task.
func (s *Scheduler) CancelAll() {
	for _, t := range s.tasks {
		t.Cancel()
	}
}

// SimpleHook is a FrameHook for hosts without a native handler registry,
// such as tests and command-line harnesses. Not safe for concurrent use.
type SimpleHook struct {
	order    []string
	handlers map[string]func()
}

// NewSimpleHook returns an empty hook.
func NewSimpleHook() *SimpleHook {
	return &SimpleHook{handlers: make(map[string]func())}
}

func (h *SimpleHook) Add(name string, fn func()) {
	if _, ok := h.handlers[name]; ok {
		return
	}
	h.handlers[name] = fn
	h.order = append(h.order, name)
}

func (h *SimpleHook) Remove(name string) {
	if _, ok := h.handlers[name]; !ok {
		return
	}
	delete(h.handlers, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *SimpleHook) Contains(name string) bool {
	_, ok := h.handlers[name]
	return ok
}

// Frame invokes every registered handler once, in registration order.
// Handlers may remove themselves during the call.
func (h *SimpleHook) Frame() {
	names := make([]string, len(h.order))
	copy(names, h.order)
	for _, name := range names {
		if fn, ok := h.handlers[name]; ok {
			fn()
		}
	}
}
