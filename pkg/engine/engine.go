package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	httpx "github.com/astremo/cloudpull/internal/http"
	"github.com/astremo/cloudpull/pkg/batch"
	"github.com/astremo/cloudpull/pkg/bridge"
	"github.com/astremo/cloudpull/pkg/cancel"
	"github.com/astremo/cloudpull/pkg/fetch"
	"github.com/astremo/cloudpull/pkg/remote"
	"github.com/astremo/cloudpull/pkg/schedule"
)

// Status values published on the engine's bridge.
const (
	StatusDownloading = "DOWNLOADING"
	StatusDone        = "DONE"
	StatusAborted     = bridge.StatusAborted
)

// Engine is the session-scoped context tying the transfer core together.
type Engine struct {
	cfg Config
	log *slog.Logger

	Scheduler  *schedule.Scheduler
	Bridge     *bridge.Bridge
	View       *bridge.View
	Session    *fetch.Session
	Remote     *remote.Client
	Downloader *batch.Downloader

	bucket *blob.Bucket
}

// Open constructs an engine session. The hook is the host's per-frame
// handler registry; it may be nil when the host calls
// Engine.Scheduler.Advance directly.
func Open(ctx context.Context, cfg Config, hook schedule.FrameHook, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg: cfg,
		log: logger.With("component", "engine"),
	}

	if cfg.MetadataBucket != "" {
		bucket, err := blob.OpenBucket(ctx, cfg.MetadataBucket)
		if err != nil {
			return nil, fmt.Errorf("open metadata bucket: %w", err)
		}
		e.bucket = bucket
	}

	e.Session = fetch.NewSession(fetch.Options{
		HTTP: httpx.Options{
			ResponseTimeout:     cfg.ResponseTimeout,
			InactivityTimeout:   cfg.InactivityTimeout,
			MaxIdleConnsPerHost: 2 * cfg.Concurrency,
		},
		ChunkSize: cfg.ChunkSize,
		Logger:    logger,
	})
	e.Remote = remote.NewClient(remote.Options{
		Endpoint: cfg.Endpoint,
		Token:    cfg.Token,
		Logger:   logger,
	})
	e.Downloader = &batch.Downloader{
		Session:  e.Session,
		Lister:   e.Remote,
		Resolver: e.Remote,
		Meta:     e.bucket,
		Limit:    cfg.Concurrency,
		Logger:   logger.With("component", "batch"),
	}

	e.View = &bridge.View{}
	e.Bridge = bridge.New(e.View.Apply)
	e.Scheduler = schedule.New(hook, logger)
	e.Scheduler.OnTick(func() { e.Bridge.Deliver() })

	return e, nil
}

// Close cancels all in-flight tasks and releases session resources. The
// host should keep driving the frame hook for a few frames afterwards so
// the scheduler can reap the cancelled tasks.
func (e *Engine) Close() error {
	e.Scheduler.CancelAll()
	if e.bucket != nil {
		if err := e.bucket.Close(); err != nil {
			return fmt.Errorf("close metadata bucket: %w", err)
		}
	}
	return nil
}

// PullThumbnails launches a scheduler task that downloads a thumbnail for
// every texture child of parentID into the session texture directory.
// Outcome is published on the bridge: DONE with an optional "N items
// missing" summary, or ABORTED with the error text.
func (e *Engine) PullThumbnails(parentID string, loading batch.LoadingFunc, loaded batch.LoadedFunc) *schedule.Task {
	return e.Scheduler.Launch("thumbnails/"+parentID, func(tok *cancel.Token) error {
		e.Bridge.Status(StatusDownloading)
		missing, err := e.Downloader.FetchThumbnails(context.Background(), parentID,
			e.cfg.ThumbnailSize, e.cfg.TextureDir, loading, loaded, tok)
		return e.report(tok, missing, err)
	})
}

// PullTexture launches a scheduler task that downloads every map file of
// the given texture node.
func (e *Engine) PullTexture(node batch.Node, loading batch.LoadingFunc, loaded batch.LoadedFunc) *schedule.Task {
	return e.Scheduler.Launch("texture/"+node.ID, func(tok *cancel.Token) error {
		e.Bridge.Status(StatusDownloading)
		missing, err := e.Downloader.DownloadTexture(context.Background(), node,
			e.cfg.TextureDir, loading, loaded, tok)
		return e.report(tok, missing, err)
	})
}

// Browse launches a scheduler task that lists the children of parentID and
// hands them to done. The callback runs on the task's goroutine.
func (e *Engine) Browse(parentID, nodeType string, done func([]batch.Node)) *schedule.Task {
	return e.Scheduler.Launch("browse/"+parentID, func(tok *cancel.Token) error {
		if err := tok.Err(); err != nil {
			return err
		}
		nodes, err := e.Remote.ListChildren(context.Background(), parentID, nodeType)
		if err != nil {
			e.Bridge.Status(StatusAborted)
			e.Bridge.Text(err.Error())
			return err
		}
		if err := tok.Err(); err != nil {
			return err
		}
		done(nodes)
		return nil
	})
}

// report converts a batch outcome into bridge messages and the task result.
// A batch that stopped early on a set token completed normally from the
// downloader's point of view, but the host still sees it as aborted.
func (e *Engine) report(tok *cancel.Token, missing []string, err error) error {
	switch {
	case errors.Is(err, cancel.ErrCancelled), err == nil && tok.Cancelled():
		e.Bridge.Status(StatusAborted)
		e.Bridge.Text("Aborted")
		return cancel.ErrCancelled
	case err != nil:
		e.Bridge.Status(StatusAborted)
		e.Bridge.Text(err.Error())
		return err
	case len(missing) > 0:
		e.Bridge.Status(StatusDone)
		e.Bridge.Text(fmt.Sprintf("%d items missing", len(missing)))
		return nil
	default:
		e.Bridge.Status(StatusDone)
		e.Bridge.Text("Done")
		return nil
	}
}
