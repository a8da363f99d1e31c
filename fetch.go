package mint

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FetchMods fetches every resolution and returns the local paths in
// completion order. Fetches run concurrently under the store's worker
// limit; the first error cancels the rest and aborts the call with no
// partial result. Progress events are sent on progress when it is non-nil.
func (s *ModStore) FetchMods(ctx context.Context, resolutions []ModResolution, update bool, progress chan<- FetchProgress) ([]string, error) {
	var mu sync.Mutex
	paths := make([]string, 0, len(resolutions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, res := range resolutions {
		g.Go(func() error {
			path, err := s.fetchMod(gctx, res, update, progress)
			if err != nil {
				return err
			}
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(resolutions) > 0 {
		if err := s.cache.Save(); err != nil {
			return nil, fmt.Errorf("save provider cache: %w", err)
		}
	}
	return paths, nil
}

// FetchModsOrdered is FetchMods with the output slice index-aligned to the
// input, regardless of completion order.
func (s *ModStore) FetchModsOrdered(ctx context.Context, resolutions []ModResolution, update bool, progress chan<- FetchProgress) ([]string, error) {
	paths := make([]string, len(resolutions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, res := range resolutions {
		g.Go(func() error {
			path, err := s.fetchMod(gctx, res, update, progress)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(resolutions) > 0 {
		if err := s.cache.Save(); err != nil {
			return nil, fmt.Errorf("save provider cache: %w", err)
		}
	}
	return paths, nil
}

// fetchMod dispatches one fetch to the provider serving res.
func (s *ModStore) fetchMod(ctx context.Context, res ModResolution, update bool, progress chan<- FetchProgress) (string, error) {
	prov, err := s.provider(res.URL)
	if err != nil {
		return "", fmt.Errorf("fetch %q: %w", res.URL, err)
	}
	s.log().Debug("fetching mod", "resolution", res.URL)
	path, err := prov.Fetch(ctx, res, update, s.cache, s.blobs, progress)
	if err != nil {
		return "", fmt.Errorf("fetch %q: %w", res.URL, err)
	}
	return path, nil
}
