// Package fetch implements cancellable, cache-aware file fetches.
//
// A Session owns the HTTP connection pool and the set of URLs already
// fetched during this run. Session.Fetch downloads one remote resource to
// one local file, using HTTP conditional-request semantics (If-None-Match /
// If-Modified-Since) to avoid re-downloading unchanged content. The
// validators backing those headers are persisted in a small JSON sidecar
// next to the destination file.
//
// # Cancellation
//
// A fetch observes its cancel.Token at three checkpoints: before the GET is
// issued, after response headers arrive, and once per streamed body chunk.
// A fetch cancelled mid-stream leaves a partially written destination file;
// callers must treat it as indeterminate.
//
// # Usage
//
//	session := fetch.NewSession(fetch.Options{})
//	err := session.Fetch(ctx, url, "/textures/wood.jpg",
//	    "/textures/wood.jpg.headers", tok)
package fetch
