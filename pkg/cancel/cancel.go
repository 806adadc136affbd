// Package cancel implements the cancellation token shared between a task
// owner and the I/O steps running on its behalf.
//
// A Token is a write-once flag: once set it never reverts. Long-running
// operations observe it only at defined checkpoints, so an in-flight network
// read is never interrupted mid-read, only at the next checkpoint.
package cancel

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is returned by an operation that observed its Token set at a
// checkpoint. It never indicates a real failure.
var ErrCancelled = errors.New("operation cancelled")

// Token is a shared, write-once cancellation flag.
//
// The zero value is a valid, uncancelled token. Setting it with Cancel is
// idempotent and safe from any goroutine.
type Token struct {
	cancelled atomic.Bool
}

// NewToken returns a fresh, uncancelled token.
func NewToken() *Token {
	return &Token{}
}

// Cancel requests cancellation. Safe to call multiple times and from any
// goroutine.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested.
//
// A nil token is never cancelled, so optional tokens can be passed through
// without nil checks at every checkpoint.
func (t *Token) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}

// Err returns ErrCancelled if the token is set, nil otherwise. It is the
// standard checkpoint: operations call Err and return its result when
// non-nil.
func (t *Token) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}
