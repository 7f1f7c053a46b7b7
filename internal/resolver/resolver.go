// Package resolver turns model URLs into fetchable form, probing IPFS
// gateways in a fixed order when the URL is content addressed.
package resolver

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metadata"
	"github.com/nft3d-scanner/internal/metrics"
)

// DefaultProbeTimeout bounds a single gateway probe
const DefaultProbeTimeout = 10 * time.Second

// Resolver probes gateways sequentially; the first 2xx wins
type Resolver struct {
	gateways     []string
	client       *http.Client
	probeTimeout time.Duration
	metrics      *metrics.Collector
	logger       *logging.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithHTTPClient replaces the probe client
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithProbeTimeout sets the per-gateway timeout
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.probeTimeout = d }
}

// WithMetrics records probe outcomes
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver over gateway prefixes such as "https://ipfs.io/ipfs/"
func New(gateways []string, opts ...Option) *Resolver {
	r := &Resolver{
		gateways:     normalizeGateways(gateways),
		client:       &http.Client{},
		probeTimeout: DefaultProbeTimeout,
		logger:       logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Component("resolver")
	return r
}

func normalizeGateways(gateways []string) []string {
	out := make([]string, 0, len(gateways))
	for _, g := range gateways {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if !strings.HasSuffix(g, "/") {
			g += "/"
		}
		out = append(out, g)
	}
	return out
}

// Gateways returns the probe order
func (r *Resolver) Gateways() []string {
	return append([]string(nil), r.gateways...)
}

// Resolve returns a URL the renderer can fetch. Inputs that are not
// content addressed come back unchanged. For IPFS content the first
// gateway answering 2xx is used; when none does, the original input is
// returned. Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	cp, ok := metadata.ParseContentPath(metadata.CleanURL(rawURL))
	if !ok {
		return rawURL
	}

	for _, gw := range r.gateways {
		if ctx.Err() != nil {
			break
		}
		candidate := gw + cp.String()
		okProbe := r.probe(ctx, candidate)
		r.metrics.GatewayProbe(gw, okProbe)
		if okProbe {
			return candidate
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"url":      rawURL,
		"gateways": len(r.gateways),
	}).Warn("No gateway served content, using original URL")
	return rawURL
}

func (r *Resolver) probe(ctx context.Context, target string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.WithError(err).WithField("target", target).Debug("Gateway probe failed")
		return false
	}
	defer resp.Body.Close()
	// drain a little so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 512)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ToSecure upgrades http:// to https:// and expands a bare content hash to
// the first gateway. Other inputs are returned cleaned.
func (r *Resolver) ToSecure(rawURL string) string {
	return toSecure(rawURL, r.firstGateway())
}

func (r *Resolver) firstGateway() string {
	if len(r.gateways) == 0 {
		return "https://ipfs.io/ipfs/"
	}
	return r.gateways[0]
}

func toSecure(rawURL, gateway string) string {
	u := metadata.CleanURL(rawURL)
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}
	if strings.Contains(u, "://") {
		return u
	}
	if cp, ok := metadata.ParseContentPath(u); ok {
		return gateway + cp.String()
	}
	return u
}

// FileExtension returns the lowercase extension of the URL path, without
// the dot, ignoring query and fragment.
func FileExtension(rawURL string) string {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	slash := strings.LastIndex(u, "/")
	dot := strings.LastIndex(u, ".")
	if dot < 0 || dot < slash || dot == len(u)-1 {
		return ""
	}
	return strings.ToLower(u[dot+1:])
}

// IsGLTF reports whether the URL points at a glTF family file
func IsGLTF(rawURL string) bool {
	switch FileExtension(rawURL) {
	case "glb", "gltf", "vrm":
		return true
	}
	return false
}
