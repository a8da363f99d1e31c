package mint

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxRedirects bounds the redirect chain for a single specification.
const maxRedirects = 32

// ResolveMods resolves specs and their transitive dependency suggestions.
// The result maps each specification that entered the process, input specs
// and discovered dependency specs alike, to its resolved info.
//
// Resolution proceeds in rounds. Every pending spec is resolved
// concurrently under the store's worker limit; the canonical spec of each
// resolved mod joins a precise set, and dependency suggestions not yet in
// that set form the next round. The first error aborts the whole call with
// no partial result. An empty input returns an empty map without touching
// any provider.
//
// update bypasses provider metadata caches for the entire closure.
func (s *ModStore) ResolveMods(ctx context.Context, specs []ModSpecification, update bool) (map[ModSpecification]ModInfo, error) {
	results := make(map[ModSpecification]ModInfo)
	precise := make(map[ModSpecification]struct{})

	pending := make(map[ModSpecification]struct{}, len(specs))
	for _, spec := range specs {
		pending[spec] = struct{}{}
	}

	for len(pending) > 0 {
		batch := make([]ModSpecification, 0, len(pending))
		for spec := range pending {
			batch = append(batch, spec)
		}

		var mu sync.Mutex
		resolved := make(map[ModSpecification]ModInfo, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, spec := range batch {
			g.Go(func() error {
				info, err := s.resolveMod(gctx, spec, update)
				if err != nil {
					return err
				}
				mu.Lock()
				resolved[spec] = info
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for spec, info := range resolved {
			results[spec] = info
			precise[info.Spec] = struct{}{}
		}

		// Dependencies of this round's mods seed the next round. Only specs
		// absent from the precise set are new work; a provider that never
		// emits canonical dependency specs keeps discovering "new" specs and
		// stalls convergence, which is on the provider, not guarded here.
		next := make(map[ModSpecification]struct{})
		for _, info := range resolved {
			for _, dep := range info.SuggestedDependencies {
				if _, ok := precise[dep]; !ok {
					next[dep] = struct{}{}
				}
			}
		}
		pending = next
	}

	if len(results) > 0 {
		if err := s.cache.Save(); err != nil {
			return nil, fmt.Errorf("save provider cache: %w", err)
		}
	}
	return results, nil
}

// resolveMod follows provider redirects until spec resolves to mod info.
// Each hop re-matches the provider, so a redirect may cross providers.
func (s *ModStore) resolveMod(ctx context.Context, spec ModSpecification, update bool) (ModInfo, error) {
	seen := map[ModSpecification]struct{}{spec: {}}
	working := spec
	for hops := 0; hops < maxRedirects; hops++ {
		prov, err := s.provider(working.URL)
		if err != nil {
			return ModInfo{}, fmt.Errorf("resolve %q: %w", working.URL, err)
		}
		resp, err := prov.Resolve(ctx, working, update, s.cache)
		if err != nil {
			return ModInfo{}, fmt.Errorf("resolve %q: %w", working.URL, err)
		}
		switch {
		case resp.Resolve != nil:
			return *resp.Resolve, nil
		case resp.Redirect != nil:
			target := *resp.Redirect
			if _, ok := seen[target]; ok {
				return ModInfo{}, fmt.Errorf("resolve %q: %w: %q redirects back to %q", spec.URL, ErrRedirectLoop, working.URL, target.URL)
			}
			seen[target] = struct{}{}
			working = target
		default:
			return ModInfo{}, fmt.Errorf("resolve %q: provider returned neither info nor redirect", working.URL)
		}
	}
	return ModInfo{}, fmt.Errorf("resolve %q: %w: no terminal response after %d redirects", spec.URL, ErrRedirectLoop, maxRedirects)
}
