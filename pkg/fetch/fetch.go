package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	httpx "github.com/astremo/cloudpull/internal/http"
	"github.com/astremo/cloudpull/pkg/cancel"
)

// DefaultChunkSize is the write granularity for streamed bodies. It is also
// the cancellation granularity: the token is observed once per chunk.
const DefaultChunkSize = 100 * 1024

// ErrTimeout is returned when a body read produces no data within the
// configured inactivity ceiling. It is a hard fetch error, distinct from
// cancellation.
var ErrTimeout = httpx.ErrStalled

// HTTPError is returned for a non-2xx, non-304 response status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Options configures a Session.
type Options struct {
	// HTTP configures the underlying transport.
	HTTP httpx.Options

	// ChunkSize overrides DefaultChunkSize when > 0.
	ChunkSize int

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// Session owns the HTTP connection pool and the set of URLs fetched fresh
// during this run. Construct one per engine session and share it between
// fetches; each Fetch call is independently cancellable.
type Session struct {
	client    *httpx.Client
	chunkSize int
	log       *slog.Logger

	mu    sync.Mutex
	fresh map[string]struct{}
}

// NewSession creates a fetch session.
func NewSession(opts Options) *Session {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.HTTP.ResponseTimeout == 0 && opts.HTTP.InactivityTimeout == 0 && opts.HTTP.MaxIdleConnsPerHost == 0 {
		opts.HTTP = httpx.DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		client:    httpx.NewClient(opts.HTTP),
		chunkSize: opts.ChunkSize,
		log:       logger.With("component", "fetch"),
		fresh:     make(map[string]struct{}),
	}
}

// Fetch downloads url to destPath, persisting cache validators in the
// sidecar at headerStore.
//
// When the destination file matches a stored validator and this URL was
// already fetched fresh during this session, no network call is made at all.
// Otherwise a conditional GET is issued; a 304 response keeps the local file
// and reads no body.
//
// Cancellation is observed at three checkpoints (pre-request, post-headers,
// per-chunk) and reported as cancel.ErrCancelled. A cancelled fetch may
// leave a partially written destination file.
func (s *Session) Fetch(ctx context.Context, url, destPath, headerStore string, tok *cancel.Token) error {
	validator := s.loadTrustedValidator(url, destPath, headerStore)
	if validator != nil && s.isFresh(url) {
		s.log.Debug("already fetched this session, skipping request", "url", url)
		return nil
	}

	// Checkpoint A: before any network traffic.
	if err := tok.Err(); err != nil {
		s.log.Debug("fetch cancelled before GET", "url", url)
		return err
	}

	var cond httpx.Conditions
	if validator != nil {
		cond.IfNoneMatch = validator.ETag
		cond.IfModifiedSince = validator.LastModified
	}

	s.log.Debug("performing GET", "url", url, "conditional", validator != nil)
	resp, err := s.client.ConditionalGet(ctx, url, cond)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	s.log.Debug("got response", "url", url, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusNotModified {
		// The cached file is still good.
		s.markFresh(url)
		return nil
	}
	if resp.Body == nil {
		return &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	defer resp.Body.Close()

	// Checkpoint B: headers are in, but no bytes written yet.
	if err := tok.Err(); err != nil {
		s.log.Debug("fetch cancelled before reading body", "url", url)
		return err
	}

	if err := s.streamBody(resp.Body, destPath, tok); err != nil {
		return err
	}

	// Only now do we have something cached worth validating next time.
	v := &Validator{
		ETag:          resp.ETag,
		LastModified:  resp.LastModified,
		ContentLength: resp.ContentLength,
	}
	if err := v.Save(headerStore); err != nil {
		return err
	}
	s.markFresh(url)
	return nil
}

// streamBody writes the response body to destPath in fixed-size chunks,
// observing the token once per chunk (checkpoint C).
func (s *Session) streamBody(body io.Reader, destPath string, tok *cancel.Token) error {
	if err := ensureDir(destPath); err != nil {
		return err
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	buf := make([]byte, s.chunkSize)
	for {
		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			if err := tok.Err(); err != nil {
				// Partial file stays on disk; the caller must treat
				// it as indeterminate.
				_ = out.Close()
				s.log.Debug("fetch cancelled mid-stream", "dest", destPath)
				return err
			}
			if _, err := out.Write(buf[:n]); err != nil {
				_ = out.Close()
				return fmt.Errorf("write %s: %w", destPath, err)
			}
		}
		if readErr == io.EOF || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			_ = out.Close()
			return fmt.Errorf("read body for %s: %w", destPath, readErr)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destPath, err)
	}
	return nil
}

// loadTrustedValidator returns the stored validator when both the sidecar
// and the destination exist and the recorded length matches the file on
// disk. A corrupt sidecar or a size mismatch is logged and treated as a
// cache miss.
func (s *Session) loadTrustedValidator(url, destPath, headerStore string) *Validator {
	if _, err := os.Stat(destPath); err != nil {
		return nil
	}

	v, err := LoadValidator(headerStore)
	if err != nil {
		s.log.Warn("unable to load validator, ignoring cache", "path", headerStore, "err", err)
		return nil
	}
	if v == nil {
		return nil
	}
	if !v.Matches(destPath) {
		s.log.Debug("local file size does not match validator, ignoring cache",
			"dest", destPath, "expected", v.ContentLength)
		return nil
	}
	return v
}

func (s *Session) isFresh(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fresh[url]
	return ok
}

func (s *Session) markFresh(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fresh[url] = struct{}{}
}

// ensureDir creates the parent directory of path if it does not exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// SanitizeFilename makes a remote filename safe to use on the local
// filesystem: path separators and other reserved characters become
// underscores, and leading dots are stripped.
func SanitizeFilename(name string) string {
	if name == "" {
		return name
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	return strings.TrimLeft(cleaned, ".")
}
