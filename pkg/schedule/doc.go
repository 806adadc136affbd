// Package schedule implements the cooperative scheduler that gives
// asynchronous tasks forward progress from a host's per-frame callback.
//
// The host is assumed to run a synchronous, single-threaded frame loop that
// must never block on network I/O. The scheduler registers exactly one
// callback with the host's per-frame hook; each invocation of Advance
// performs one bounded unit of work (draining tick callbacks and polling
// task states) and returns immediately. When every task has reached a
// terminal state the results are reaped and the scheduler removes its
// callback from the hook, so an idle scheduler costs nothing per frame.
//
// Errors raised inside a task never propagate out of Advance: they are
// captured in the task's result slot, logged when reaped, and swallowed.
//
// All Scheduler methods must be called from the owning goroutine (the one
// driving the frame loop). Cross-goroutine communication goes through
// package bridge.
package schedule
