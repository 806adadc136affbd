// Package batch downloads many remote assets with bounded concurrency.
//
// A Downloader walks a remote hierarchy through the Lister and Resolver
// collaborator interfaces, then fans out fetches in consecutive waves of
// Limit items. A wave's fetches start together and the downloader waits for
// the whole wave to resolve before starting the next one. Keeping waves
// small caps how many sockets can be mid-flight when cancellation is
// requested, which bounds how long a cancellation takes to take effect.
//
// A missing file resource is a soft, per-item condition: the item is
// reported to the loaded callback with a nil file and empty path, and
// collected in the returned missing list. A hard error (HTTP, timeout, I/O)
// fails the whole batch; items that already completed keep their on-disk
// results.
//
// Callbacks are invoked from the per-item goroutines and may run
// concurrently. Callers that need delivery on the owning goroutine should
// publish through a bridge inside the callback.
package batch
