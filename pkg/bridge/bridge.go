package bridge

import (
	"fmt"
	"log/slog"
	"sync"
)

// Kind tags a progress message.
type Kind int

const (
	// KindText carries a free-form status line.
	KindText Kind = iota
	// KindStatus carries a status enum value such as "PACKING" or "DONE".
	KindStatus
	// KindProgress carries a numeric progress value in percent.
	KindProgress
)

// StatusAborted is the conventional status published when a worker fails or
// is aborted mid-operation.
const StatusAborted = "ABORTED"

// Message is one immutable progress update. Exactly one payload field is
// meaningful, selected by Kind.
type Message struct {
	Kind     Kind
	Text     string
	Status   string
	Progress float64
}

// Bridge is a thread-safe message channel between worker goroutines and the
// owning goroutine. Publish may be called from any goroutine; Deliver must
// only be called from the owner.
type Bridge struct {
	apply func(Message)
	log   *slog.Logger

	mu    sync.Mutex
	queue []Message
}

// New creates a bridge that hands delivered messages to apply. The apply
// function runs on the owning goroutine, inside Deliver.
func New(apply func(Message)) *Bridge {
	return &Bridge{
		apply: apply,
		log:   slog.Default().With("component", "bridge"),
	}
}

// Publish queues a message for delivery and returns immediately. Messages
// from one goroutine are delivered in the order they were published.
func (b *Bridge) Publish(m Message) {
	b.mu.Lock()
	b.queue = append(b.queue, m)
	b.mu.Unlock()
}

// Text publishes a free-form status line.
func (b *Bridge) Text(msg string) {
	b.Publish(Message{Kind: KindText, Text: msg})
}

// Status publishes a status enum value.
func (b *Bridge) Status(status string) {
	b.Publish(Message{Kind: KindStatus, Status: status})
}

// Progress publishes a numeric progress value in percent.
func (b *Bridge) Progress(percent float64) {
	b.Publish(Message{Kind: KindProgress, Progress: percent})
}

// Deliver applies every queued message, in queue order, and returns how
// many were delivered. Owner goroutine only. Each message is consumed
// exactly once.
func (b *Bridge) Deliver() int {
	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, m := range pending {
		b.apply(m)
	}
	return len(pending)
}

// Go runs fn on a new goroutine. A failure never crosses the goroutine
// boundary raw: an error or panic is converted into an ABORTED status plus
// a text message and logged. The returned channel is closed when the worker
// finishes.
func (b *Bridge) Go(fn func() error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("worker panicked", "panic", r)
				b.Status(StatusAborted)
				b.Text(fmt.Sprintf("worker panicked: %v", r))
			}
		}()
		if err := fn(); err != nil {
			b.log.Error("worker failed", "err", err)
			b.Status(StatusAborted)
			b.Text(err.Error())
		}
	}()
	return done
}

// View is owner-side state fed by a bridge: a status line, a status enum
// and a progress percentage. Use its Apply method as the bridge's apply
// function.
type View struct {
	Text     string
	Status   string
	Progress float64
}

// Apply updates exactly the field the message names.
func (v *View) Apply(m Message) {
	switch m.Kind {
	case KindText:
		v.Text = m.Text
	case KindStatus:
		v.Status = m.Status
	case KindProgress:
		v.Progress = m.Progress
	}
}
