// Package http provides mods fetched from direct download URLs.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	neturl "net/url"
	"path"
	"strings"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/internal/ziputil"
	"github.com/mariangheata53/mint/providercache"
)

// ID is the provider identifier.
const ID = "http"

// cacheSection maps fetched URLs to the blobs holding their content.
type cacheSection struct {
	URLBlobs map[string]blobcache.Ref `json:"url_blobs,omitempty"`
}

// Provider fetches mods over plain HTTP(S). A URL resolves to itself;
// fetched payloads must be zip or octet-stream content and are stored in
// the blob cache keyed by URL.
type Provider struct {
	client *nethttp.Client
}

var _ mint.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithClient sets the HTTP client used for downloads.
func WithClient(client *nethttp.Client) Option {
	return func(p *Provider) { p.client = client }
}

// New returns an HTTP provider.
func New(opts ...Option) *Provider {
	p := &Provider{client: nethttp.DefaultClient}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory describes the provider for registry registration.
func Factory() mint.Factory {
	return mint.Factory{
		ID: ID,
		New: func(map[string]string) (mint.Provider, error) {
			return New(), nil
		},
		CanProvide: func(locator string) bool {
			return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
		},
	}
}

// Resolve implements mint.Provider. Download URLs are already terminal.
func (p *Provider) Resolve(_ context.Context, spec mint.ModSpecification, _ bool, _ *providercache.Cache) (mint.ModResponse, error) {
	info, err := p.info(spec)
	if err != nil {
		return mint.ModResponse{}, err
	}
	return mint.ModResponse{Resolve: info}, nil
}

func (p *Provider) info(spec mint.ModSpecification) (*mint.ModInfo, error) {
	u, err := neturl.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", spec.URL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = u.Host
	}
	return &mint.ModInfo{
		Provider: ID,
		Name:     name,
		Spec:     spec,
		Versions: []mint.ModSpecification{spec},
		Status:   mint.ResolvableStatus{Resolution: &mint.ModResolution{URL: spec.URL}},
	}, nil
}

// Fetch implements mint.Provider.
func (p *Provider) Fetch(ctx context.Context, res mint.ModResolution, update bool, cache *providercache.Cache, blobs *blobcache.Cache, progress chan<- mint.FetchProgress) (string, error) {
	if !update {
		if section, ok := providercache.Read[cacheSection](cache, ID); ok {
			if ref, ok := section.URLBlobs[res.URL]; ok {
				if path, ok := blobs.Path(ref); ok {
					if progress != nil {
						progress <- mint.FetchProgress{Resolution: res, Stage: mint.StageComplete}
					}
					return path, nil
				}
			}
		}
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, res.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", res.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: unexpected status %s", res.URL, resp.Status)
	}
	declaredZip, err := checkContentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", res.URL, err)
	}

	var total uint64
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	pw := mint.NewProgressWriter(progress, res, total)
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, pw), resp.Body); err != nil {
		return "", fmt.Errorf("download %s: %w", res.URL, err)
	}
	data := buf.Bytes()
	if declaredZip {
		if err := ziputil.Verify(data); err != nil {
			return "", fmt.Errorf("%w: %s: %v", mint.ErrUnexpectedContent, res.URL, err)
		}
	}

	ref, err := blobs.Write(data)
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	err = providercache.Update(cache, ID, func(s *cacheSection) {
		if s.URLBlobs == nil {
			s.URLBlobs = make(map[string]blobcache.Ref)
		}
		s.URLBlobs[res.URL] = ref
	})
	if err != nil {
		return "", err
	}
	path, ok := blobs.Path(ref)
	if !ok {
		return "", fmt.Errorf("blob %s missing after write", ref)
	}
	pw.Complete()
	return path, nil
}

// checkContentType gates payloads to zip or octet-stream content and
// reports whether the payload is declared zip. An absent header passes.
func checkContentType(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false, fmt.Errorf("%w: bad content type %q", mint.ErrUnexpectedContent, value)
	}
	switch mediaType {
	case "application/zip":
		return true, nil
	case "application/octet-stream":
		return false, nil
	default:
		return false, fmt.Errorf("%w: content type %q", mint.ErrUnexpectedContent, mediaType)
	}
}

// UpdateCache implements mint.Provider. URL content has no refreshable
// metadata.
func (p *Provider) UpdateCache(context.Context, *providercache.Cache) error {
	return nil
}

// Check implements mint.Provider.
func (p *Provider) Check(context.Context) error {
	return nil
}

// GetModInfo implements mint.Provider.
func (p *Provider) GetModInfo(spec mint.ModSpecification, _ *providercache.Cache) (*mint.ModInfo, bool) {
	info, err := p.info(spec)
	if err != nil {
		return nil, false
	}
	return info, true
}

// IsPinned implements mint.Provider. A download URL is assumed stable.
func (p *Provider) IsPinned(mint.ModSpecification, *providercache.Cache) bool {
	return true
}

// GetVersionName implements mint.Provider.
func (p *Provider) GetVersionName(mint.ModSpecification, *providercache.Cache) (string, bool) {
	return "latest", true
}
