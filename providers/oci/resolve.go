package oci

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/providercache"
)

// Resolve implements mint.Provider. Tag locators resolve the manifest
// descriptor and redirect to the digest-pinned form; pinned locators are
// terminal without network traffic.
func (p *Provider) Resolve(ctx context.Context, spec mint.ModSpecification, update bool, cache *providercache.Cache) (mint.ModResponse, error) {
	ref, err := parseLocator(spec.URL)
	if err != nil {
		return mint.ModResponse{}, err
	}
	if d, ok := pinnedDigest(ref); ok {
		return mint.ModResponse{Resolve: info(ref, d)}, nil
	}

	if !update {
		if section, ok := providercache.Read[cacheSection](cache, ID); ok {
			if raw, ok := section.Tags[spec.URL]; ok {
				p.log().Debug("tag cache hit", "locator", spec.URL, "digest", raw)
				return redirectTo(fmt.Sprintf("%s%s/%s@%s", scheme, ref.Registry, ref.Repository, raw)), nil
			}
		}
	}

	repo, err := p.repository(ref)
	if err != nil {
		return mint.ModResponse{}, err
	}
	desc, err := repo.Resolve(ctx, tagOf(ref))
	if err != nil {
		return mint.ModResponse{}, fmt.Errorf("resolve %s: %w", spec.URL, mapError(err))
	}
	err = providercache.Update(cache, ID, func(s *cacheSection) {
		if s.Tags == nil {
			s.Tags = make(map[string]string)
		}
		s.Tags[spec.URL] = desc.Digest.String()
	})
	if err != nil {
		return mint.ModResponse{}, err
	}
	return redirectTo(digestLocator(ref, desc.Digest)), nil
}

func redirectTo(locator string) mint.ModResponse {
	spec := mint.ModSpecification{URL: locator}
	return mint.ModResponse{Redirect: &spec}
}

// UpdateCache implements mint.Provider by re-resolving every cached tag
// locator. Stale digests are replaced; the blobs they pointed at stay in
// the blob cache untouched.
func (p *Provider) UpdateCache(ctx context.Context, cache *providercache.Cache) error {
	section, ok := providercache.Read[cacheSection](cache, ID)
	if !ok {
		return nil
	}
	for _, locator := range slices.Sorted(maps.Keys(section.Tags)) {
		ref, err := parseLocator(locator)
		if err != nil {
			continue
		}
		repo, err := p.repository(ref)
		if err != nil {
			return err
		}
		p.log().Debug("refreshing tag", "locator", locator)
		desc, err := repo.Resolve(ctx, tagOf(ref))
		if err != nil {
			return fmt.Errorf("refresh %s: %w", locator, mapError(err))
		}
		err = providercache.Update(cache, ID, func(s *cacheSection) {
			if s.Tags == nil {
				s.Tags = make(map[string]string)
			}
			s.Tags[locator] = desc.Digest.String()
		})
		if err != nil {
			return err
		}
	}
	return nil
}
