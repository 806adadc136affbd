// Package bridge carries progress updates from worker goroutines to the
// goroutine that owns UI and mutable state.
//
// A long-running operation that the host cannot decompose into frame-sized
// steps runs on its own goroutine. That worker must never touch owner state
// directly; instead it publishes immutable messages through a Bridge. The
// owning goroutine drains the bridge once per scheduler tick and applies
// each message to exactly the state it names.
//
// Publish never blocks the worker. Delivery order is preserved per
// publishing goroutine; no ordering is guaranteed across different
// publishers. A worker aborted mid-operation may still have already-queued
// messages delivered after the abort.
//
// # Usage
//
//	var view bridge.View
//	b := bridge.New(view.Apply)
//	sched.OnTick(func() { b.Deliver() })
//
//	b.Go(func() error {
//	    b.Text("Packing scene")
//	    b.Progress(40)
//	    return doPack()
//	})
package bridge
