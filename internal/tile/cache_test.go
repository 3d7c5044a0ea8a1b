package tile_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmroute/osmroute/internal/osmdata"
	"github.com/osmroute/osmroute/internal/tile"
)

// fakeFetcher serves a tiny document per tile and records every call.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []tile.ID
	fail  map[tile.ID]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, id tile.ID, w io.Writer) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	fail := f.fail[id]
	f.mu.Unlock()

	if fail {
		_, _ = io.WriteString(w, "<osm><node id=")
		return 0, fmt.Errorf("%w: simulated", tile.ErrUpstream)
	}

	nodeID := id.X*100000 + id.Y
	doc := fmt.Sprintf(`<osm version="0.6">
 <node id="%d" lat="52.5" lon="-1.8"/>
 <node id="1" lat="52.4" lon="-1.7"/>
 <way id="%d"><nd ref="1"/><nd ref="%d"/><tag k="highway" v="residential"/></way>
</osm>`, nodeID, nodeID, nodeID)
	n, err := io.WriteString(w, doc)
	return int64(n), err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newCache(t *testing.T, f tile.Fetcher) *tile.Cache {
	t.Helper()
	return tile.NewCache(tile.CacheConfig{
		Dir:     t.TempDir(),
		Fetcher: f,
	})
}

func TestCache_DownloadLevel(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f)
	id := tile.ID{Z: 15, X: 16218, Y: 10735}

	path, ok := c.GetTile(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(c.Dir(), "15", "16218", "10735", "data.osm"), path)
	assert.FileExists(t, path)
	assert.Equal(t, 1, f.callCount())

	again, ok := c.GetTile(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, f.callCount(), "cached tile must not be fetched again")
}

func TestCache_FinerZoomUsesAncestor(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f)

	path, ok := c.GetTile(context.Background(), tile.ID{Z: 17, X: 64875, Y: 42941})
	require.True(t, ok)

	require.Equal(t, 1, f.callCount())
	assert.Equal(t, tile.ID{Z: 15, X: 16218, Y: 10735}, f.calls[0])
	assert.Equal(t, c.Path(tile.ID{Z: 15, X: 16218, Y: 10735}), path)
}

func TestCache_CoarserZoomMergesChildren(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f)
	parent := tile.ID{Z: 14, X: 8109, Y: 5367}

	path, ok := c.GetTile(context.Background(), parent)
	require.True(t, ok)
	assert.Equal(t, c.Path(parent), path)

	require.Equal(t, 4, f.callCount())
	assert.ElementsMatch(t, parent.Children(), f.calls)

	collection := osmdata.NewCollection()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	_, err = osmdata.Decode(context.Background(), file, collection.Handler())
	require.NoError(t, err)

	assert.Equal(t, 5, collection.NodeCount(), "shared node 1 appears once")
	assert.Equal(t, 4, collection.WayCount())

	_, ok = c.GetTile(context.Background(), parent)
	require.True(t, ok)
	assert.Equal(t, 4, f.callCount(), "merged tile is served from disk")
}

func TestCache_TwoLevelMerge(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f)

	_, ok := c.GetTile(context.Background(), tile.ID{Z: 13, X: 4054, Y: 2683})
	require.True(t, ok)
	assert.Equal(t, 16, f.callCount())
}

func TestCache_DownloadFailureLeavesNothing(t *testing.T) {
	id := tile.ID{Z: 15, X: 1, Y: 1}
	f := &fakeFetcher{fail: map[tile.ID]bool{id: true}}
	c := newCache(t, f)

	_, ok := c.GetTile(context.Background(), id)
	assert.False(t, ok)
	assert.NoFileExists(t, c.Path(id))

	entries, err := os.ReadDir(filepath.Dir(c.Path(id)))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up")

	f.mu.Lock()
	f.fail = nil
	f.mu.Unlock()

	_, ok = c.GetTile(context.Background(), id)
	assert.True(t, ok, "failures are not cached")
	assert.Equal(t, 2, f.callCount())
}

func TestCache_MergeWithMissingChild(t *testing.T) {
	parent := tile.ID{Z: 14, X: 0, Y: 0}
	children := parent.Children()
	f := &fakeFetcher{fail: map[tile.ID]bool{children[2]: true}}
	c := newCache(t, f)

	_, ok := c.GetTile(context.Background(), parent)
	assert.False(t, ok)
	assert.Equal(t, 4, f.callCount(), "every child is attempted")
	assert.NoFileExists(t, c.Path(parent))
	assert.FileExists(t, c.Path(children[0]))
}

func TestCache_RejectsWithoutIO(t *testing.T) {
	tests := []struct {
		name string
		id   tile.ID
	}{
		{"zoom above max", tile.ID{Z: 26}},
		{"negative x", tile.ID{Z: 15, X: -1}},
		{"negative y", tile.ID{Z: 15, Y: -1}},
		{"beyond merge depth", tile.ID{Z: 10, X: 5, Y: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			c := newCache(t, f)

			_, ok := c.GetTile(context.Background(), tt.id)
			assert.False(t, ok)
			assert.Zero(t, f.callCount())
		})
	}
}

func TestCache_MergeDepth(t *testing.T) {
	tests := []struct {
		name      string
		depth     int
		wantOK    bool
		wantCalls int
	}{
		{"default stops at four levels", 0, false, 0},
		{"explicit limit", 5, true, 1024},
		{"no limit", tile.NoMergeLimit, true, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			c := tile.NewCache(tile.CacheConfig{
				Dir:           t.TempDir(),
				DownloadLevel: 5,
				MaxMergeDepth: tt.depth,
				Fetcher:       f,
			})

			path, ok := c.GetTile(context.Background(), tile.ID{Z: 0})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCalls, f.callCount())
			if tt.wantOK {
				assert.Equal(t, c.Path(tile.ID{Z: 0}), path)
			}
		})
	}
}

func TestCache_CancelledContext(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := c.GetTile(ctx, tile.ID{Z: 15, X: 3, Y: 3})
	assert.False(t, ok)
	assert.Zero(t, f.callCount())
}

func TestCache_Remove(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f)
	id := tile.ID{Z: 15, X: 7, Y: 7}

	_, ok := c.GetTile(context.Background(), id)
	require.True(t, ok)

	require.NoError(t, c.Remove(id))
	assert.NoFileExists(t, c.Path(id))
	require.NoError(t, c.Remove(id), "removing twice is fine")
	assert.ErrorIs(t, c.Remove(tile.ID{Z: -1}), tile.ErrInvalidTile)
}

func TestCache_Check(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tiles")
	c := tile.NewCache(tile.CacheConfig{Dir: dir, Fetcher: &fakeFetcher{}})

	require.NoError(t, c.Check(context.Background()))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write check leaves no file behind")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	broken := tile.NewCache(tile.CacheConfig{Dir: filepath.Join(blocker, "tiles"), Fetcher: &fakeFetcher{}})
	assert.Error(t, broken.Check(context.Background()))
}

func TestHTTPFetcher(t *testing.T) {
	var requests atomic.Int32
	var gotQuery atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/api/0.6/map", r.URL.Path)
		gotQuery.Store(r.URL.Query().Get("bbox"))
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<osm version="0.6"><node id="1" lat="0" lon="0"/></osm>`))
	}))
	defer server.Close()

	f := tile.NewHTTPFetcher(tile.FetcherConfig{BaseURL: server.URL + "/"})
	id := tile.ID{Z: 15, X: 16218, Y: 10735}

	var sb strings.Builder
	n, err := f.Fetch(context.Background(), id, &sb)
	require.NoError(t, err)
	assert.Equal(t, int64(sb.Len()), n)
	assert.Contains(t, sb.String(), `<node id="1"`)
	assert.Equal(t, int32(1), requests.Load())

	b := id.Bound()
	want := fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", b.Left(), b.Bottom(), b.Right(), b.Top())
	assert.Equal(t, want, gotQuery.Load())

	u, err := url.Parse(f.URL(id))
	require.NoError(t, err)
	assert.Equal(t, want, u.Query().Get("bbox"))
}

func TestHTTPFetcher_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "You requested too many nodes", http.StatusBadRequest)
	}))
	defer server.Close()

	f := tile.NewHTTPFetcher(tile.FetcherConfig{BaseURL: server.URL})

	_, err := f.Fetch(context.Background(), tile.ID{Z: 15}, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tile.ErrUpstream))
	assert.Contains(t, err.Error(), "400")
}

func TestCache_WithHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<osm version="0.6"><node id="9" lat="1" lon="2"/></osm>`))
	}))
	defer server.Close()

	c := tile.NewCache(tile.CacheConfig{
		Dir:     t.TempDir(),
		Fetcher: tile.NewHTTPFetcher(tile.FetcherConfig{BaseURL: server.URL}),
	})

	path, ok := c.GetTile(context.Background(), tile.ID{Z: 15, X: 2, Y: 2})
	require.True(t, ok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `<osm version="0.6"><node id="9" lat="1" lon="2"/></osm>`, string(raw), "payload stored verbatim")

	var ids []osm.NodeID
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	_, err = osmdata.Decode(context.Background(), file, osmdata.Handler{
		Node: func(n *osm.Node) { ids = append(ids, n.ID) },
	})
	require.NoError(t, err)
	assert.Equal(t, []osm.NodeID{9}, ids)
}
