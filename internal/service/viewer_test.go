package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/resolver"
	"github.com/nft3d-scanner/internal/types"
)

const testHash = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

// mockRenderer fails every URL containing one of its reject substrings and
// returns no statistics for URLs containing one of its blank substrings
type mockRenderer struct {
	reject []string
	blank  []string
	loaded []string
}

func (m *mockRenderer) Load(ctx context.Context, url string, format types.ModelFormat) (*types.MeshStats, error) {
	m.loaded = append(m.loaded, url)
	for _, r := range m.reject {
		if strings.Contains(url, r) {
			return nil, errors.New("unsupported model")
		}
	}
	for _, b := range m.blank {
		if strings.Contains(url, b) {
			return nil, nil
		}
	}
	return &types.MeshStats{Vertices: 300, Triangles: 100, Materials: 2}, nil
}

type countingResolver struct {
	calls atomic.Int32
	fn    func(string) string
}

func (c *countingResolver) Resolve(ctx context.Context, raw string) string {
	c.calls.Add(1)
	return c.fn(raw)
}

func TestViewerOpen_FallsBackOverCandidates(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(gw.Close)

	c, _ := setupTestCache(t)
	viewer := NewViewerService(resolver.New([]string{gw.URL}), c, logging.NewDiscardLogger())

	asset := &types.AssetRecord{
		TokenID: "7",
		ModelURLs: []types.ModelURLCandidate{
			{URL: "https://broken.example/a.glb", Format: types.FormatGLB},
			{URL: "ipfs://" + testHash + "/a.vrm", Format: types.FormatVRM},
		},
	}
	renderer := &mockRenderer{reject: []string{"broken.example"}}

	require.NoError(t, viewer.Open(context.Background(), asset, renderer))

	wantURL := gw.URL + "/" + testHash + "/a.vrm"
	assert.Equal(t, []string{"https://broken.example/a.glb", wantURL}, renderer.loaded)
	assert.True(t, asset.Technical.Loaded)
	assert.Equal(t, 100, asset.Technical.Triangles)
	assert.Equal(t, types.FormatVRM, asset.Format)
	assert.Equal(t, wantURL, asset.Storage.URL)
	assert.Equal(t, types.StorageIPFS, asset.Storage.Kind)
	assert.Equal(t, testHash, asset.Storage.Hash)
}

func TestViewerOpen_AllCandidatesFail(t *testing.T) {
	c, _ := setupTestCache(t)
	viewer := NewViewerService(&countingResolver{fn: func(s string) string { return s }}, c, logging.NewDiscardLogger())

	asset := &types.AssetRecord{ModelURLs: []types.ModelURLCandidate{
		{URL: "https://x/a.glb", Format: types.FormatGLB},
		{URL: "https://x/b.gltf", Format: types.FormatGLTF},
	}}
	err := viewer.Open(context.Background(), asset, &mockRenderer{reject: []string{"x/"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://x/b.gltf")
	assert.False(t, asset.Technical.Loaded)
}

func TestViewerOpen_MissingStatsIsFailure(t *testing.T) {
	c, _ := setupTestCache(t)
	viewer := NewViewerService(&countingResolver{fn: func(s string) string { return s }}, c, logging.NewDiscardLogger())

	asset := &types.AssetRecord{ModelURLs: []types.ModelURLCandidate{
		{URL: "https://x/a.glb", Format: types.FormatGLB},
		{URL: "https://y/b.gltf", Format: types.FormatGLTF},
	}}
	renderer := &mockRenderer{blank: []string{"x/"}}
	require.NoError(t, viewer.Open(context.Background(), asset, renderer))
	assert.Equal(t, []string{"https://x/a.glb", "https://y/b.gltf"}, renderer.loaded)
	assert.Equal(t, types.FormatGLTF, asset.Format)
	assert.True(t, asset.Technical.Loaded)

	asset = &types.AssetRecord{ModelURLs: []types.ModelURLCandidate{{URL: "https://x/c.glb", Format: types.FormatGLB}}}
	err := viewer.Open(context.Background(), asset, renderer)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoMeshStats)
	assert.False(t, asset.Technical.Loaded)
}

func TestViewerOpen_NoModel(t *testing.T) {
	c, _ := setupTestCache(t)
	viewer := NewViewerService(&countingResolver{fn: func(s string) string { return s }}, c, logging.NewDiscardLogger())

	err := viewer.Open(context.Background(), &types.AssetRecord{TokenID: "1"}, &mockRenderer{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
}

func TestViewerResolveURL_CachesResolutions(t *testing.T) {
	c, mr := setupTestCache(t)
	res := &countingResolver{fn: func(s string) string {
		if strings.HasPrefix(s, "ipfs://") {
			return "https://gw/" + strings.TrimPrefix(s, "ipfs://")
		}
		return s
	}}
	viewer := NewViewerService(res, c, logging.NewDiscardLogger())
	ctx := context.Background()

	raw := "ipfs://" + testHash + "/a.glb"
	assert.Equal(t, "https://gw/"+testHash+"/a.glb", viewer.ResolveURL(ctx, raw))
	assert.Equal(t, "https://gw/"+testHash+"/a.glb", viewer.ResolveURL(ctx, raw))
	assert.Equal(t, int32(1), res.calls.Load())
	assert.True(t, mr.Exists("preview:"+raw))

	// unchanged URLs are not cached
	viewer.ResolveURL(ctx, "https://x/a.glb")
	viewer.ResolveURL(ctx, "https://x/a.glb")
	assert.Equal(t, int32(3), res.calls.Load())
}

func TestRecordTechnical(t *testing.T) {
	fetcher := twoPageFetcher()
	svc, _, _ := setupDiscovery(t, fetcher, 0)
	ctx := context.Background()

	_, err := svc.Discover(ctx, testOwner, ethereum, "")
	require.NoError(t, err)

	viewer := NewViewerService(&countingResolver{fn: func(s string) string { return s }}, svc.cache, logging.NewDiscardLogger())
	stats := types.MeshStats{Vertices: 9, Triangles: 3, Materials: 1}

	asset, err := viewer.RecordTechnical(ctx, testOwner, ethereum, testContract, "1", stats)
	require.NoError(t, err)
	assert.True(t, asset.Technical.Loaded)

	found, err := svc.FindAsset(ctx, testOwner, ethereum, testContract, "1")
	require.NoError(t, err)
	assert.Equal(t, 3, found.Technical.Triangles)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	_, err = viewer.RecordTechnical(ctx, testOwner, ethereum, testContract, "99", stats)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))

	_, err = viewer.RecordTechnical(ctx, "0xbad", ethereum, testContract, "1", stats)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}
