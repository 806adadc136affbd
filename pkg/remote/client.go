package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/astremo/cloudpull/pkg/batch"
	"github.com/astremo/cloudpull/pkg/fetch"
)

// ErrProjectNotFound is returned by FindProject when no project matches the
// given URL slug.
var ErrProjectNotFound = errors.New("remote: project not found")

// Options configures a Client.
type Options struct {
	// Endpoint is the base URL of the metadata service.
	Endpoint string

	// Token is the opaque credential attached to every request. May be
	// empty for anonymous access.
	Token string

	// Timeout bounds each metadata request. Default: 30s.
	Timeout time.Duration

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// Client talks to the hierarchy/metadata service. It implements
// batch.Lister and batch.Resolver.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
	log      *slog.Logger
}

// NewClient creates a metadata client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		token:    opts.Token,
		client:   &http.Client{Timeout: opts.Timeout},
		log:      logger.With("component", "remote"),
	}
}

type nodeDoc struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	NodeType   string `json:"node_type"`
	Picture    string `json:"picture"`
	Properties struct {
		Files []struct {
			File    string `json:"file"`
			MapType string `json:"map_type"`
		} `json:"files"`
	} `json:"properties"`
}

type nodeList struct {
	Items []nodeDoc `json:"_items"`
}

type fileDoc struct {
	ID       string `json:"_id"`
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Length   int64  `json:"length"`
}

type projectList struct {
	Items []struct {
		ID string `json:"_id"`
	} `json:"_items"`
}

// ListChildren returns the published children of parentID, optionally
// restricted to one node type, in the service's sort order.
func (c *Client) ListChildren(ctx context.Context, parentID, nodeType string) ([]batch.Node, error) {
	query := url.Values{}
	query.Set("parent", parentID)
	query.Set("status", "published")
	if nodeType != "" {
		query.Set("node_type", nodeType)
	}

	var list nodeList
	if err := c.get(ctx, "/nodes", query, &list); err != nil {
		return nil, err
	}

	nodes := make([]batch.Node, 0, len(list.Items))
	for _, doc := range list.Items {
		n := batch.Node{
			ID:        doc.ID,
			Name:      doc.Name,
			NodeType:  doc.NodeType,
			PictureID: doc.Picture,
		}
		for _, f := range doc.Properties.Files {
			n.Files = append(n.Files, batch.MapFile{FileID: f.File, MapType: f.MapType})
		}
		nodes = append(nodes, n)
	}
	c.log.Debug("listed children", "parent", parentID, "count", len(nodes))
	return nodes, nil
}

// ResolveFile resolves a file resource ID to its download URL and metadata.
// A 404 from the service becomes batch.ErrResourceNotFound.
func (c *Client) ResolveFile(ctx context.Context, fileID string) (*batch.FileRef, error) {
	var doc fileDoc
	err := c.get(ctx, "/files/"+url.PathEscape(fileID), nil, &doc)
	if isNotFound(err) {
		return nil, batch.ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch.FileRef{
		ID:       doc.ID,
		URL:      doc.Link,
		Filename: doc.Filename,
		Size:     doc.Length,
	}, nil
}

// FindProject returns the ID of the project with the given URL slug.
func (c *Client) FindProject(ctx context.Context, projectURL string) (string, error) {
	query := url.Values{}
	query.Set("url", projectURL)

	var list projectList
	if err := c.get(ctx, "/projects", query, &list); err != nil {
		if isNotFound(err) {
			return "", ErrProjectNotFound
		}
		return "", err
	}
	if len(list.Items) == 0 {
		return "", ErrProjectNotFound
	}
	c.log.Info("found project", "url", projectURL, "id", list.Items[0].ID)
	return list.Items[0].ID, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &fetch.HTTPError{StatusCode: resp.StatusCode, URL: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response of %s: %w", path, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var httpErr *fetch.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
