// Package oci provides mods stored as artifacts in OCI registries.
//
// Mods are addressed as oci://<host>/<repo>[:<tag>|@<digest>]. A tag (or
// no reference at all, which means "latest") resolves to the manifest
// digest and redirects to the digest-pinned locator; the pinned locator is
// terminal. The mod payload is the manifest's zip layer.
package oci

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/providercache"
)

// ID is the provider identifier.
const ID = "oci"

// Media types for mod artifacts.
const (
	// ArtifactType identifies mod artifacts in manifest metadata.
	ArtifactType = "application/vnd.mint.mod.v1"

	// LayerMediaType is the preferred media type for mod payload layers.
	LayerMediaType = "application/vnd.mint.mod.layer.v1+zip"
)

const scheme = "oci://"

// cacheSection is the provider's section in the shared cache document.
type cacheSection struct {
	// Tags maps tag-form locators to the manifest digest they resolved to.
	Tags map[string]string `json:"tags,omitempty"`

	// Blobs maps manifest digests to the blobs holding their payloads.
	Blobs map[string]blobcache.Ref `json:"blobs,omitempty"`
}

// Provider pulls mod artifacts from OCI registries. Pulls are anonymous
// unless a credential is configured.
type Provider struct {
	username  string
	password  string
	plainHTTP bool
	logger    *slog.Logger

	authClient *auth.Client
}

var _ mint.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithCredential sets a static credential used for every registry.
func WithCredential(username, password string) Option {
	return func(p *Provider) {
		p.username = username
		p.password = password
	}
}

// WithPlainHTTP uses plain HTTP instead of HTTPS to reach registries.
func WithPlainHTTP(enabled bool) Option {
	return func(p *Provider) { p.plainHTTP = enabled }
}

// WithLogger sets the logger. Logging is disabled when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New returns an OCI provider.
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	p.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(_ context.Context, _ string) (auth.Credential, error) {
			if p.username == "" {
				return auth.EmptyCredential, nil
			}
			return auth.Credential{Username: p.username, Password: p.password}, nil
		},
	}
	return p
}

// Factory describes the provider for registry registration. The provider
// has no required parameters; pulls default to anonymous, and optional
// username/password values configure a static credential.
func Factory() mint.Factory {
	return mint.Factory{
		ID: ID,
		New: func(params map[string]string) (mint.Provider, error) {
			var opts []Option
			if username := params["username"]; username != "" {
				opts = append(opts, WithCredential(username, params["password"]))
			}
			return New(opts...), nil
		},
		CanProvide: func(locator string) bool {
			_, err := parseLocator(locator)
			return err == nil
		},
	}
}

func (p *Provider) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// repository creates an ORAS repository client for ref.
func (p *Provider) repository(ref registry.Reference) (*remote.Repository, error) {
	repo, err := remote.NewRepository(ref.Registry + "/" + ref.Repository)
	if err != nil {
		return nil, fmt.Errorf("create repository client: %w", err)
	}
	repo.PlainHTTP = p.plainHTTP
	repo.Client = p.authClient
	return repo, nil
}

// parseLocator splits an oci:// locator into its reference parts.
func parseLocator(locator string) (registry.Reference, error) {
	rest, ok := strings.CutPrefix(locator, scheme)
	if !ok {
		return registry.Reference{}, fmt.Errorf("not an oci locator: %q", locator)
	}
	ref, err := registry.ParseReference(rest)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("parse %q: %w", locator, err)
	}
	return ref, nil
}

// pinnedDigest returns the manifest digest when ref is digest-pinned.
func pinnedDigest(ref registry.Reference) (digest.Digest, bool) {
	d, err := digest.Parse(ref.Reference)
	if err != nil {
		return "", false
	}
	return d, true
}

// tagOf returns the tag named by ref, defaulting to "latest".
func tagOf(ref registry.Reference) string {
	if ref.Reference == "" {
		return "latest"
	}
	return ref.Reference
}

func digestLocator(ref registry.Reference, d digest.Digest) string {
	return fmt.Sprintf("%s%s/%s@%s", scheme, ref.Registry, ref.Repository, d)
}

// info builds the terminal mod info for a digest-pinned locator.
func info(ref registry.Reference, d digest.Digest) *mint.ModInfo {
	locator := digestLocator(ref, d)
	spec := mint.ModSpecification{URL: locator}
	return &mint.ModInfo{
		Provider: ID,
		Name:     path.Base(ref.Repository),
		Spec:     spec,
		Versions: []mint.ModSpecification{spec},
		Status:   mint.ResolvableStatus{Resolution: &mint.ModResolution{URL: locator}},
	}
}

// Check implements mint.Provider. There is no fixed registry to probe;
// credentials are verified on first use.
func (p *Provider) Check(context.Context) error {
	return nil
}

// GetModInfo implements mint.Provider. Digest-pinned locators are
// self-describing; tag locators need their digest cached.
func (p *Provider) GetModInfo(spec mint.ModSpecification, cache *providercache.Cache) (*mint.ModInfo, bool) {
	ref, err := parseLocator(spec.URL)
	if err != nil {
		return nil, false
	}
	if d, ok := pinnedDigest(ref); ok {
		return info(ref, d), true
	}
	section, ok := providercache.Read[cacheSection](cache, ID)
	if !ok {
		return nil, false
	}
	raw, ok := section.Tags[spec.URL]
	if !ok {
		return nil, false
	}
	d, err := digest.Parse(raw)
	if err != nil {
		return nil, false
	}
	return info(ref, d), true
}

// IsPinned implements mint.Provider. Only digest references pin content.
func (p *Provider) IsPinned(spec mint.ModSpecification, _ *providercache.Cache) bool {
	ref, err := parseLocator(spec.URL)
	if err != nil {
		return false
	}
	_, ok := pinnedDigest(ref)
	return ok
}

// GetVersionName implements mint.Provider.
func (p *Provider) GetVersionName(spec mint.ModSpecification, _ *providercache.Cache) (string, bool) {
	ref, err := parseLocator(spec.URL)
	if err != nil {
		return "", false
	}
	if d, ok := pinnedDigest(ref); ok {
		hex := d.Encoded()
		if len(hex) > 12 {
			hex = hex[:12]
		}
		return hex, true
	}
	return tagOf(ref), true
}
