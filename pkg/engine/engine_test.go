package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/memblob"

	"github.com/astremo/cloudpull/pkg/batch"
	"github.com/astremo/cloudpull/pkg/schedule"
)

// cloudServer serves a minimal metadata API plus the asset bodies behind it.
type cloudServer struct {
	*httptest.Server

	nodesJSON string
	gate      chan struct{} // when non-nil, /nodes blocks until closed
}

func startCloudServer(t *testing.T) *cloudServer {
	t.Helper()
	cs := &cloudServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/nodes", func(w http.ResponseWriter, r *http.Request) {
		if cs.gate != nil {
			<-cs.gate
		}
		w.Write([]byte(cs.nodesJSON))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		id := filepath.Base(r.URL.Path)
		fmt.Fprintf(w, `{"_id": %q, "link": %q, "filename": "%s.jpg", "length": 3}`,
			id, cs.URL+"/assets/"+id+".jpg", id)
	})
	mux.HandleFunc("/assets/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("abc"))
	})

	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Server.Close)
	return cs
}

func (cs *cloudServer) serveNodes(nodes ...string) {
	cs.nodesJSON = `{"_items": [` + strings.Join(nodes, ",") + `]}`
}

func textureNodeJSON(id, name, picture string) string {
	return fmt.Sprintf(`{"_id": %q, "name": %q, "node_type": "texture", "picture": %q}`,
		id, name, picture)
}

func testConfig(t *testing.T, endpoint string) Config {
	cfg := Default()
	cfg.Endpoint = endpoint
	cfg.TextureDir = t.TempDir()
	cfg.MetadataBucket = "mem://"
	return cfg
}

// driveFrames runs the frame hook until the scheduler goes idle.
func driveFrames(t *testing.T, hook *schedule.SimpleHook, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for e.Scheduler.Active() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not go idle in time")
		}
		hook.Frame()
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil, nil)
	require.Error(t, err)
}

func TestPullThumbnails(t *testing.T) {
	server := startCloudServer(t)
	server.serveNodes(
		textureNodeJSON("n1", "Alpha", "pic-a"),
		textureNodeJSON("n2", "Beta", "pic-b"),
	)

	cfg := testConfig(t, server.URL)
	hook := schedule.NewSimpleHook()
	e, err := Open(context.Background(), cfg, hook, nil)
	require.NoError(t, err)
	defer e.Close()

	var (
		mu     sync.Mutex
		loaded []string
	)
	task := e.PullThumbnails("parent-1",
		func(n batch.Node) {},
		func(n batch.Node, f *batch.FileRef, path string) {
			mu.Lock()
			loaded = append(loaded, filepath.Base(path))
			mu.Unlock()
		})

	driveFrames(t, hook, e)

	assert.Equal(t, schedule.StateDoneOK, task.State())
	assert.Equal(t, StatusDone, e.View.Status)
	assert.Equal(t, "Done", e.View.Text)
	assert.ElementsMatch(t, []string{"pic-a-l.jpg", "pic-b-l.jpg"}, loaded)

	for _, name := range []string{"pic-a-l.jpg", "pic-b-l.jpg"} {
		data, err := os.ReadFile(filepath.Join(cfg.TextureDir, name))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
		assert.FileExists(t, filepath.Join(cfg.TextureDir, name+".headers"))
	}

	// The scheduler reaped the task and unregistered its frame handler.
	assert.Equal(t, 0, e.Scheduler.TaskCount())
	assert.False(t, hook.Contains("cloudpull.advance"))
}

func TestPullThumbnailsReportsMissing(t *testing.T) {
	// 404 every file lookup so the one item is a missing source.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/nodes" {
			w.Write([]byte(`{"_items": [` + textureNodeJSON("n1", "Alpha", "pic-a") + `]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()
	cfg := testConfig(t, server.URL)

	hook := schedule.NewSimpleHook()
	e, err := Open(context.Background(), cfg, hook, nil)
	require.NoError(t, err)
	defer e.Close()

	task := e.PullThumbnails("parent-1",
		func(batch.Node) {}, func(batch.Node, *batch.FileRef, string) {})
	driveFrames(t, hook, e)

	assert.Equal(t, schedule.StateDoneOK, task.State())
	assert.Equal(t, StatusDone, e.View.Status)
	assert.Equal(t, "1 items missing", e.View.Text)
}

func TestPullThumbnailsCancelled(t *testing.T) {
	server := startCloudServer(t)
	server.serveNodes(textureNodeJSON("n1", "Alpha", "pic-a"))
	server.gate = make(chan struct{})

	cfg := testConfig(t, server.URL)
	hook := schedule.NewSimpleHook()
	e, err := Open(context.Background(), cfg, hook, nil)
	require.NoError(t, err)
	defer e.Close()

	task := e.PullThumbnails("parent-1",
		func(batch.Node) {}, func(batch.Node, *batch.FileRef, string) {})

	// The listing is stuck on the gate, so the token is guaranteed to be
	// set before the downloader's first checkpoint.
	task.Cancel()
	close(server.gate)

	driveFrames(t, hook, e)

	assert.Equal(t, schedule.StateDoneCancelled, task.State())
	assert.Equal(t, StatusAborted, e.View.Status)
	assert.Equal(t, "Aborted", e.View.Text)
}

func TestPullTexture(t *testing.T) {
	server := startCloudServer(t)

	cfg := testConfig(t, server.URL)
	hook := schedule.NewSimpleHook()
	e, err := Open(context.Background(), cfg, hook, nil)
	require.NoError(t, err)
	defer e.Close()

	node := batch.Node{
		ID:       "tex-1",
		Name:     "Wood",
		NodeType: batch.NodeTypeTexture,
		Files: []batch.MapFile{
			{FileID: "f-col", MapType: "col"},
			{FileID: "f-nor", MapType: "nor"},
		},
	}
	task := e.PullTexture(node,
		func(batch.Node) {}, func(batch.Node, *batch.FileRef, string) {})
	driveFrames(t, hook, e)

	assert.Equal(t, schedule.StateDoneOK, task.State())
	assert.Equal(t, StatusDone, e.View.Status)
	assert.FileExists(t, filepath.Join(cfg.TextureDir, "col-f-col.jpg"))
	assert.FileExists(t, filepath.Join(cfg.TextureDir, "nor-f-nor.jpg"))

	// Resolved file documents land in the metadata bucket.
	for _, key := range []string{"files/f-col.json", "files/f-nor.json"} {
		ok, err := e.Downloader.Meta.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, "expected %s in metadata bucket", key)
	}
}

func TestBrowse(t *testing.T) {
	server := startCloudServer(t)
	server.serveNodes(
		textureNodeJSON("n1", "Alpha", "pic-a"),
		`{"_id": "g1", "name": "Group", "node_type": "group_texture"}`,
	)

	cfg := testConfig(t, server.URL)
	hook := schedule.NewSimpleHook()
	e, err := Open(context.Background(), cfg, hook, nil)
	require.NoError(t, err)
	defer e.Close()

	var (
		mu    sync.Mutex
		nodes []batch.Node
	)
	task := e.Browse("parent-1", "", func(children []batch.Node) {
		mu.Lock()
		nodes = children
		mu.Unlock()
	})
	driveFrames(t, hook, e)

	assert.Equal(t, schedule.StateDoneOK, task.State())
	require.Len(t, nodes, 2)
	assert.Equal(t, "Alpha", nodes[0].Name)
	assert.Equal(t, "group_texture", nodes[1].NodeType)
}
