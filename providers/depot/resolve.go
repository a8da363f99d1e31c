package depot

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/providercache"
)

// requiredTag marks mods the depot recommends enabling for everyone.
const requiredTag = "required"

// Resolve implements mint.Provider by walking the locator grammar one rung
// per call: name to mod id, mod id to latest file, full locator to
// terminal info.
func (p *Provider) Resolve(ctx context.Context, spec mint.ModSpecification, update bool, cache *providercache.Cache) (mint.ModResponse, error) {
	c, ok := parseLocator(spec.URL)
	if !ok {
		return mint.ModResponse{}, fmt.Errorf("malformed depot spec %q", spec.URL)
	}
	if err := p.checkHost(c); err != nil {
		return mint.ModResponse{}, err
	}
	switch {
	case c.fileID != 0:
		return p.resolvePinned(ctx, c, update, cache)
	case c.modID != 0:
		return p.resolveLatest(ctx, c, update, cache)
	default:
		return p.resolveName(ctx, c, update, cache)
	}
}

// resolveName maps a bare name id to its mod id.
func (p *Provider) resolveName(ctx context.Context, c coords, update bool, cache *providercache.Cache) (mint.ModResponse, error) {
	if !update {
		if h, ok := p.cachedHost(cache); ok {
			if id, ok := h.NameIDs[c.nameID]; ok {
				p.log().Debug("name cache hit", "name", c.nameID, "mod", id)
				return redirect(p.specURL(c.nameID, id, 0)), nil
			}
		}
	}
	mods, err := p.searchMods(ctx, c.nameID)
	if err != nil {
		return mint.ModResponse{}, err
	}
	switch len(mods) {
	case 1:
	case 0:
		return mint.ModResponse{}, fmt.Errorf("no mod named %q on %s: %w", c.nameID, p.host, ErrNotFound)
	default:
		return mint.ModResponse{}, fmt.Errorf("ambiguous mod name %q on %s: %d matches", c.nameID, p.host, len(mods))
	}
	mod := mods[0]
	if err := p.storeMod(cache, mod); err != nil {
		return mint.ModResponse{}, err
	}
	return redirect(p.specURL(mod.NameID, mod.ID, 0)), nil
}

// resolveLatest maps a mod id to its latest published file.
func (p *Provider) resolveLatest(ctx context.Context, c coords, update bool, cache *providercache.Cache) (mint.ModResponse, error) {
	mod, err := p.loadMod(ctx, c.modID, update, cache)
	if err != nil {
		return mint.ModResponse{}, err
	}
	if mod.LatestFileID == 0 {
		return mint.ModResponse{}, fmt.Errorf("mod %q has no published file", mod.NameID)
	}
	return redirect(p.specURL(mod.NameID, mod.ID, mod.LatestFileID)), nil
}

// resolvePinned answers a fully specified locator with terminal info.
func (p *Provider) resolvePinned(ctx context.Context, c coords, update bool, cache *providercache.Cache) (mint.ModResponse, error) {
	mod, err := p.loadMod(ctx, c.modID, update, cache)
	if err != nil {
		return mint.ModResponse{}, err
	}
	if !hasFile(mod, c.fileID) {
		// Cached metadata may predate the file; fetch once before giving up.
		mod, err = p.getMod(ctx, c.modID)
		if err != nil {
			return mint.ModResponse{}, err
		}
		if err := p.storeMod(cache, mod); err != nil {
			return mint.ModResponse{}, err
		}
		if !hasFile(mod, c.fileID) {
			return mint.ModResponse{}, fmt.Errorf("mod %q has no file %d: %w", mod.NameID, c.fileID, ErrNotFound)
		}
	}
	deps, err := p.loadDeps(ctx, c.modID, update, cache)
	if err != nil {
		return mint.ModResponse{}, err
	}
	return mint.ModResponse{Resolve: p.modInfo(mod, c.fileID, deps)}, nil
}

// loadMod returns mod metadata from cache when allowed, fetching and
// caching it otherwise.
func (p *Provider) loadMod(ctx context.Context, id int64, update bool, cache *providercache.Cache) (Mod, error) {
	if !update {
		if h, ok := p.cachedHost(cache); ok {
			if mod, ok := h.Mods[id]; ok {
				p.log().Debug("mod cache hit", "mod", id)
				return mod, nil
			}
		}
	}
	mod, err := p.getMod(ctx, id)
	if err != nil {
		return Mod{}, err
	}
	if err := p.storeMod(cache, mod); err != nil {
		return Mod{}, err
	}
	return mod, nil
}

func (p *Provider) loadDeps(ctx context.Context, id int64, update bool, cache *providercache.Cache) ([]Dependency, error) {
	if !update {
		if h, ok := p.cachedHost(cache); ok {
			if deps, ok := h.Deps[id]; ok {
				return deps, nil
			}
		}
	}
	deps, err := p.getDependencies(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.storeDeps(cache, id, deps); err != nil {
		return nil, err
	}
	return deps, nil
}

// modInfo builds the terminal info for mod pinned at fileID.
//
// The canonical spec stops at the mod id, matching the form dependency
// suggestions use, so the resolver's dedupe recognizes already-resolved
// dependencies.
func (p *Provider) modInfo(mod Mod, fileID int64, deps []Dependency) *mint.ModInfo {
	files := sortedFiles(mod.Files)
	versions := make([]mint.ModSpecification, 0, len(files))
	for _, f := range files {
		versions = append(versions, mint.ModSpecification{URL: p.specURL(mod.NameID, mod.ID, f.ID)})
	}
	depSpecs := make([]mint.ModSpecification, 0, len(deps))
	for _, d := range deps {
		depSpecs = append(depSpecs, mint.ModSpecification{URL: p.specURL(d.NameID, d.ModID, 0)})
	}
	return &mint.ModInfo{
		Provider: ID,
		Name:     mod.Name,
		Spec:     mint.ModSpecification{URL: p.specURL(mod.NameID, mod.ID, 0)},
		Versions: versions,
		Status: mint.ResolvableStatus{
			Resolution: &mint.ModResolution{URL: p.specURL(mod.NameID, mod.ID, fileID)},
		},
		SuggestedRequire:      slices.Contains(mod.Tags, requiredTag),
		SuggestedDependencies: depSpecs,
	}
}

func hasFile(mod Mod, fileID int64) bool {
	for _, f := range mod.Files {
		if f.ID == fileID {
			return true
		}
	}
	return false
}

// sortedFiles orders files most preferred first: semantic versions
// descending, then unversioned files by upload time, newest first.
func sortedFiles(files []File) []File {
	out := slices.Clone(files)
	slices.SortStableFunc(out, func(a, b File) int {
		va, errA := semver.NewVersion(a.Version)
		vb, errB := semver.NewVersion(b.Version)
		switch {
		case errA == nil && errB == nil:
			return vb.Compare(va)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		default:
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	})
	return out
}

func redirect(url string) mint.ModResponse {
	spec := mint.ModSpecification{URL: url}
	return mint.ModResponse{Redirect: &spec}
}
