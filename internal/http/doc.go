// Package http provides the HTTP transport for conditional asset fetches.
//
// This package handles:
//   - Connection pooling shared across an engine session
//   - Conditional GET requests (If-Modified-Since / If-None-Match)
//   - An inactivity watchdog that aborts stalled body reads
//
// # Usage
//
//	client := http.NewClient(Options{
//	    ResponseTimeout:   30 * time.Second,
//	    InactivityTimeout: 600 * time.Second,
//	})
//
//	resp, err := client.ConditionalGet(ctx, url, Conditions{
//	    IfNoneMatch:     etag,
//	    IfModifiedSince: lastModified,
//	})
//	if resp.Body != nil {
//	    defer resp.Body.Close()
//	}
//
// A 304 (Not Modified) or non-2xx response carries a nil Body; callers decide
// what a non-2xx status means.
//
// There is deliberately no retry or backoff here: transient failures surface
// immediately and the caller decides what to do.
package http
