package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nft3d-scanner/internal/logging"
)

const testHash = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

type probeLog struct {
	mu    sync.Mutex
	paths []string
}

func (p *probeLog) add(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, s)
}

func (p *probeLog) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func gateway(t *testing.T, name string, status int, log *probeLog) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(name + r.URL.Path)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/ipfs/"
}

func newResolver(gateways ...string) *Resolver {
	return New(gateways, WithLogger(logging.NewDiscardLogger()), WithProbeTimeout(time.Second))
}

func TestResolve_FirstSuccessfulGatewayWins(t *testing.T) {
	var log probeLog
	g1 := gateway(t, "g1", http.StatusNotFound, &log)
	g2 := gateway(t, "g2", http.StatusOK, &log)
	g3 := gateway(t, "g3", http.StatusOK, &log)

	r := newResolver(g1, g2, g3)
	got := r.Resolve(context.Background(), "ipfs://"+testHash+"/model.glb")

	assert.Equal(t, g2+testHash+"/model.glb", got)
	assert.Equal(t, []string{
		"g1/ipfs/" + testHash + "/model.glb",
		"g2/ipfs/" + testHash + "/model.glb",
	}, log.all())
}

func TestResolve_AllGatewaysFail(t *testing.T) {
	var log probeLog
	g1 := gateway(t, "g1", http.StatusBadGateway, &log)
	g2 := gateway(t, "g2", http.StatusNotFound, &log)

	r := newResolver(g1, g2)
	raw := "https://somewhere.example/ipfs/" + testHash

	assert.Equal(t, raw, r.Resolve(context.Background(), raw))
	assert.Len(t, log.all(), 2)
}

func TestResolve_NonContentURLUntouched(t *testing.T) {
	var log probeLog
	g1 := gateway(t, "g1", http.StatusOK, &log)

	r := newResolver(g1)
	raw := "https://models.example/a.glb"

	assert.Equal(t, raw, r.Resolve(context.Background(), raw))
	assert.Empty(t, log.all())
}

func TestResolve_UnreachableGatewayFallsThrough(t *testing.T) {
	var log probeLog
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/ipfs/"
	dead.Close()
	live := gateway(t, "live", http.StatusOK, &log)

	r := newResolver(deadURL, live)

	assert.Equal(t, live+testHash, r.Resolve(context.Background(), testHash))
}

func TestToSecure(t *testing.T) {
	r := New(nil, WithLogger(logging.NewDiscardLogger()))

	tests := []struct {
		in   string
		want string
	}{
		{"http://x/a.glb", "https://x/a.glb"},
		{"https://x/a.glb", "https://x/a.glb"},
		{testHash, "https://ipfs.io/ipfs/" + testHash},
		{testHash + "/a.vrm", "https://ipfs.io/ipfs/" + testHash + "/a.vrm"},
		{"ipfs://" + testHash, "ipfs://" + testHash},
		{"relative/path.glb", "relative/path.glb"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.ToSecure(tt.in), tt.in)
	}
}

func TestFileExtension(t *testing.T) {
	tests := map[string]string{
		"https://x/a.GLB":        "glb",
		"https://x/a.gltf?v=2":   "gltf",
		"https://x/a.vrm#frag":   "vrm",
		"https://x.example/file": "",
		"https://x/a.":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FileExtension(in), in)
	}

	assert.True(t, IsGLTF("https://x/a.vrm?x=1"))
	assert.False(t, IsGLTF("https://x/a.png"))
}
