// Package file provides mods from paths already on disk.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/providercache"
)

// ID is the provider identifier.
const ID = "file"

// Provider serves specifications that name existing local files. Content
// is never copied into the blob cache; fetches hand back the original
// path.
type Provider struct{}

var _ mint.Provider = (*Provider)(nil)

// New returns a file provider.
func New() *Provider {
	return &Provider{}
}

// Factory describes the provider for registry registration. A locator is
// accepted when it names an existing path.
func Factory() mint.Factory {
	return mint.Factory{
		ID: ID,
		New: func(map[string]string) (mint.Provider, error) {
			return New(), nil
		},
		CanProvide: func(locator string) bool {
			_, err := os.Stat(locator)
			return err == nil
		},
	}
}

// Resolve implements mint.Provider. Local files resolve to metadata only;
// the artifact has no fetchable resolution.
func (p *Provider) Resolve(_ context.Context, spec mint.ModSpecification, _ bool, _ *providercache.Cache) (mint.ModResponse, error) {
	info, err := p.info(spec)
	if err != nil {
		return mint.ModResponse{}, err
	}
	return mint.ModResponse{Resolve: info}, nil
}

func (p *Provider) info(spec mint.ModSpecification) (*mint.ModInfo, error) {
	name := filepath.Base(spec.URL)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, fmt.Errorf("no file name in %q", spec.URL)
	}
	return &mint.ModInfo{
		Provider: ID,
		Name:     name,
		Spec:     spec,
		Versions: []mint.ModSpecification{spec},
		Status:   mint.ResolvableStatus{Name: name},
	}, nil
}

// Fetch implements mint.Provider. The path inside res is returned as-is.
func (p *Provider) Fetch(_ context.Context, res mint.ModResolution, _ bool, _ *providercache.Cache, _ *blobcache.Cache, progress chan<- mint.FetchProgress) (string, error) {
	if progress != nil {
		progress <- mint.FetchProgress{Resolution: res, Stage: mint.StageComplete}
	}
	return res.URL, nil
}

// UpdateCache implements mint.Provider. There is no remote state.
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

// IsPinned implements mint.Provider. Local files always are.
func (p *Provider) IsPinned(mint.ModSpecification, *providercache.Cache) bool {
	return true
}

// GetVersionName implements mint.Provider.
func (p *Provider) GetVersionName(mint.ModSpecification, *providercache.Cache) (string, bool) {
	return "latest", true
}
