package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"gocloud.dev/blob"

	"github.com/astremo/cloudpull/pkg/cancel"
	"github.com/astremo/cloudpull/pkg/fetch"
)

// DefaultLimit is the wave size used when Downloader.Limit is unset.
const DefaultLimit = 2

// NodeTypeTexture is the node type of downloadable texture leaves.
const NodeTypeTexture = "texture"

// ErrResourceNotFound reports that a metadata lookup found no underlying
// file for an item. It is a soft, per-item condition and never aborts a
// batch.
var ErrResourceNotFound = errors.New("batch: file resource not found")

// Node is one descriptor in the remote hierarchy.
type Node struct {
	ID        string
	Name      string
	NodeType  string
	PictureID string
	Files     []MapFile
}

// MapFile links a texture node to one of its map files.
type MapFile struct {
	FileID  string
	MapType string
}

// FileRef describes a concrete remote file resource.
type FileRef struct {
	ID       string `json:"id"`
	URL      string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"length"`
}

// Lister lists the children of a hierarchy node.
type Lister interface {
	ListChildren(ctx context.Context, parentID, nodeType string) ([]Node, error)
}

// Resolver resolves a file resource ID to a concrete FileRef. A lookup that
// finds nothing returns ErrResourceNotFound.
type Resolver interface {
	ResolveFile(ctx context.Context, fileID string) (*FileRef, error)
}

// LoadingFunc is called before an item's fetch starts, so the caller can
// show a pending state.
type LoadingFunc func(n Node)

// LoadedFunc is called when an item has been handled. file and localPath
// are nil/empty for an item whose resource could not be located remotely.
type LoadedFunc func(n Node, file *FileRef, localPath string)

// Downloader fetches renditions for many hierarchy items in
// concurrency-bounded waves.
type Downloader struct {
	// Session performs the individual cache-aware fetches.
	Session *fetch.Session

	// Lister and Resolver are the remote hierarchy collaborators.
	Lister   Lister
	Resolver Resolver

	// Meta is an optional bucket where resolved file documents are
	// persisted as files/<id>.json.
	Meta *blob.Bucket

	// Limit is the wave size. Defaults to DefaultLimit.
	Limit int

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

func (d *Downloader) limit() int {
	if d.Limit > 0 {
		return d.Limit
	}
	return DefaultLimit
}

func (d *Downloader) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default().With("component", "batch")
}

// FetchThumbnails discovers the texture children of parentID and downloads
// a thumbnail rendition of each into dir. It returns the IDs of items whose
// file resource could not be located ("missing sources").
//
// Cancellation is not an error: the call returns normally with whatever
// items were delivered before the token was observed.
func (d *Downloader) FetchThumbnails(ctx context.Context, parentID, desiredSize, dir string,
	loading LoadingFunc, loaded LoadedFunc, tok *cancel.Token) ([]string, error) {

	d.log().Debug("listing children", "parent", parentID)
	children, err := d.Lister.ListChildren(ctx, parentID, NodeTypeTexture)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", parentID, err)
	}

	if tok.Cancelled() {
		d.log().Info("thumbnail fetch cancelled before starting", "parent", parentID)
		return nil, nil
	}

	missing, err := d.FetchMany(ctx, children, desiredSize, dir, loading, loaded, tok)
	if err != nil {
		return missing, err
	}
	d.log().Info("done downloading thumbnails", "parent", parentID, "items", len(children),
		"missing", len(missing))
	return missing, nil
}

// FetchMany downloads a thumbnail rendition for each item into dir, in
// consecutive waves of Limit items. See FetchThumbnails for the reporting
// contract.
func (d *Downloader) FetchMany(ctx context.Context, items []Node, desiredSize, dir string,
	loading LoadingFunc, loaded LoadedFunc, tok *cancel.Token) ([]string, error) {

	var (
		mu      sync.Mutex
		missing []string
	)

	err := d.runWaves(ctx, items, tok, func(ctx context.Context, n Node) error {
		// Non-texture nodes cannot be thumbnailed.
		if n.NodeType != NodeTypeTexture {
			return nil
		}
		if err := tok.Err(); err != nil {
			return err
		}

		loading(n)
		file, err := d.Resolver.ResolveFile(ctx, n.PictureID)
		if errors.Is(err, ErrResourceNotFound) || (err == nil && file == nil) {
			d.log().Warn("unable to find file for node", "node", n.ID, "picture", n.PictureID)
			mu.Lock()
			missing = append(missing, n.ID)
			mu.Unlock()
			loaded(n, nil, "")
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve file %s: %w", n.PictureID, err)
		}
		if err := tok.Err(); err != nil {
			return err
		}

		dest := filepath.Join(dir, thumbnailName(file.Filename, desiredSize))
		if err := d.Session.Fetch(ctx, file.URL, dest, dest+".headers", tok); err != nil {
			return err
		}
		loaded(n, file, dest)
		return nil
	})
	return missing, err
}

// DownloadTexture downloads every map file of a texture node into
// targetDir, persisting each resolved file document to the metadata bucket.
// Files are named <maptype>-<filename>, sanitized.
func (d *Downloader) DownloadTexture(ctx context.Context, node Node, targetDir string,
	loading LoadingFunc, loaded LoadedFunc, tok *cancel.Token) ([]string, error) {

	if node.NodeType != NodeTypeTexture {
		return nil, fmt.Errorf("node type should be %q, not %q", NodeTypeTexture, node.NodeType)
	}

	// Each map file becomes its own item so waves apply uniformly.
	items := make([]Node, len(node.Files))
	for i, mf := range node.Files {
		items[i] = Node{
			ID:        mf.FileID,
			Name:      node.Name,
			NodeType:  NodeTypeTexture,
			PictureID: mf.FileID,
		}
	}

	var (
		mu      sync.Mutex
		missing []string
	)
	mapTypes := make(map[string]string, len(node.Files))
	for _, mf := range node.Files {
		mapTypes[mf.FileID] = mf.MapType
	}

	err := d.runWaves(ctx, items, tok, func(ctx context.Context, n Node) error {
		if err := tok.Err(); err != nil {
			return err
		}

		loading(n)
		file, err := d.Resolver.ResolveFile(ctx, n.PictureID)
		if errors.Is(err, ErrResourceNotFound) || (err == nil && file == nil) {
			d.log().Warn("unable to find file", "file", n.PictureID)
			mu.Lock()
			missing = append(missing, n.ID)
			mu.Unlock()
			loaded(n, nil, "")
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve file %s: %w", n.PictureID, err)
		}

		if err := d.saveFileDoc(ctx, file); err != nil {
			return err
		}

		name := fetch.SanitizeFilename(fmt.Sprintf("%s-%s", mapTypes[n.PictureID], file.Filename))
		dest := filepath.Join(targetDir, name)
		if err := d.Session.Fetch(ctx, file.URL, dest, dest+".headers", tok); err != nil {
			return err
		}
		loaded(n, file, dest)
		return nil
	})
	return missing, err
}

// runWaves partitions items into consecutive waves and runs one goroutine
// per item within a wave. Wave N+1 never starts before every item of wave N
// has resolved. A set token stops before the next wave; a hard error from
// any item fails the call once its wave has fully resolved.
func (d *Downloader) runWaves(ctx context.Context, items []Node, tok *cancel.Token,
	run func(ctx context.Context, n Node) error) error {

	limit := d.limit()
	for start := 0; start < len(items); start += limit {
		if tok.Cancelled() {
			d.log().Info("batch cancelled between waves", "delivered", start)
			return nil
		}

		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		wave := items[start:end]
		d.log().Debug("starting wave", "from", start, "to", end)

		errs := make([]error, len(wave))
		var wg sync.WaitGroup
		for i, n := range wave {
			wg.Add(1)
			go func(i int, n Node) {
				defer wg.Done()
				errs[i] = run(ctx, n)
			}(i, n)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil && !errors.Is(err, cancel.ErrCancelled) {
				return err
			}
		}
	}
	return nil
}

// saveFileDoc persists the resolved file document to the metadata bucket.
// No-op without a bucket.
func (d *Downloader) saveFileDoc(ctx context.Context, file *FileRef) error {
	if d.Meta == nil {
		return nil
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode file document: %w", err)
	}
	key := "files/" + file.ID + ".json"
	d.log().Debug("saving file document", "key", key)
	if err := d.Meta.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("save file document %s: %w", key, err)
	}
	return nil
}

// thumbnailName derives the local thumbnail filename for a remote file:
// the stem of the remote name plus the size indicator, always .jpg.
func thumbnailName(remoteName, desiredSize string) string {
	stem := strings.TrimSuffix(remoteName, filepath.Ext(remoteName))
	return fetch.SanitizeFilename(fmt.Sprintf("%s-%s.jpg", stem, desiredSize))
}
