// Package testutils provides shared test fixtures for the transfer core.
package testutils

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// LastModified is the fixed Last-Modified header served for every fixture
// file.
const LastModified = "Wed, 21 Oct 2015 07:28:00 GMT"

// FixtureFile is one file served by an AssetServer.
type FixtureFile struct {
	Name string // request path without leading slash
	Data []byte
	ETag string // served quoted as-is; empty means no ETag header
}

// AssetServer is an httptest server with HTTP conditional-request support:
// it answers If-None-Match / If-Modified-Since with 304 and counts requests
// per path so tests can assert on network traffic.
type AssetServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests map[string]int
	bodies   map[string]int
}

// StartAssetServer serves the given fixture files until test cleanup.
func StartAssetServer(t *testing.T, files []FixtureFile) *AssetServer {
	t.Helper()

	byPath := make(map[string]FixtureFile)
	for _, f := range files {
		byPath["/"+f.Name] = f
	}

	as := &AssetServer{
		requests: make(map[string]int),
		bodies:   make(map[string]int),
	}
	as.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		as.mu.Lock()
		as.requests[r.URL.Path]++
		as.mu.Unlock()

		if f.ETag != "" {
			w.Header().Set("ETag", f.ETag)
		}
		w.Header().Set("Last-Modified", LastModified)

		if match := r.Header.Get("If-None-Match"); match != "" && match == f.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if since := r.Header.Get("If-Modified-Since"); since == LastModified {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
		w.WriteHeader(http.StatusOK)
		w.Write(f.Data)

		as.mu.Lock()
		as.bodies[r.URL.Path]++
		as.mu.Unlock()
	}))
	t.Cleanup(as.Server.Close)
	return as
}

// FileURL returns the full URL of a fixture file.
func (as *AssetServer) FileURL(name string) string {
	return as.URL + "/" + name
}

// Requests returns how many requests hit the given file, 304s included.
func (as *AssetServer) Requests(name string) int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.requests["/"+name]
}

// BodyWrites returns how many times the given file's body was actually
// served (304 responses do not count).
func (as *AssetServer) BodyWrites(name string) int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.bodies["/"+name]
}
