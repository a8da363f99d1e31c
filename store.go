package mint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/providercache"
)

const defaultWorkers = 5

// ModStore coordinates providers over a shared cache document and a
// content-addressed blob store.
//
// The store owns two pieces of disk state under its root directory:
// cache.json, the shared provider cache document, and blobs/, the
// content-addressed payload store. The document is persisted at
// construction, after every successful resolve or fetch batch, after
// UpdateCache, and on SaveCache.
type ModStore struct {
	registry *Registry
	cache    *providercache.Cache
	blobs    *blobcache.Cache
	logger   *slog.Logger
	workers  int

	mu        sync.RWMutex
	providers map[string]Provider
}

// Option configures a ModStore.
type Option func(*ModStore)

// WithLogger sets the logger. Logging is disabled when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ModStore) { s.logger = logger }
}

// WithWorkers bounds the number of concurrent resolve and fetch
// operations. Values below one are ignored; the default is five.
func WithWorkers(n int) Option {
	return func(s *ModStore) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// New opens the store rooted at dir, creating it as needed. Every
// registered factory whose parameters are all present in params (keyed by
// factory id) is constructed. Factories with missing parameters are
// skipped, not failed: their locators report a NoProviderError carrying
// the factory until AddProvider supplies the parameters.
func New(dir string, reg *Registry, params map[string]map[string]string, opts ...Option) (*ModStore, error) {
	cache, err := providercache.Load(filepath.Join(dir, "cache.json"))
	if err != nil {
		return nil, fmt.Errorf("load provider cache: %w", err)
	}
	s := &ModStore{
		registry:  reg,
		cache:     cache,
		blobs:     blobcache.New(filepath.Join(dir, "blobs")),
		workers:   defaultWorkers,
		providers: make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, f := range reg.Factories() {
		p := params[f.ID]
		if !hasAllParameters(f, p) {
			continue
		}
		prov, err := f.New(p)
		if err != nil {
			return nil, fmt.Errorf("construct %s provider: %w", f.ID, err)
		}
		s.providers[f.ID] = prov
	}
	if err := cache.Save(); err != nil {
		return nil, fmt.Errorf("save provider cache: %w", err)
	}
	return s, nil
}

func hasAllParameters(f Factory, params map[string]string) bool {
	for _, p := range f.Parameters {
		if _, ok := params[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (s *ModStore) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// AddProvider constructs f and makes it available for matching locators.
// An existing provider with the same id is replaced.
func (s *ModStore) AddProvider(f Factory, params map[string]string) error {
	prov, err := f.New(params)
	if err != nil {
		return fmt.Errorf("construct %s provider: %w", f.ID, err)
	}
	s.mu.Lock()
	s.providers[f.ID] = prov
	s.mu.Unlock()
	return nil
}

// AddProviderChecked constructs f, verifies it with Check, and makes it
// available only on success.
func (s *ModStore) AddProviderChecked(ctx context.Context, f Factory, params map[string]string) error {
	prov, err := f.New(params)
	if err != nil {
		return fmt.Errorf("construct %s provider: %w", f.ID, err)
	}
	if err := prov.Check(ctx); err != nil {
		return fmt.Errorf("check %s provider: %w", f.ID, err)
	}
	s.mu.Lock()
	s.providers[f.ID] = prov
	s.mu.Unlock()
	return nil
}

// provider returns the constructed provider serving locator.
func (s *ModStore) provider(locator string) (Provider, error) {
	f, ok := s.registry.Match(locator)
	if !ok {
		return nil, &NoProviderError{Locator: locator}
	}
	s.mu.RLock()
	prov, ok := s.providers[f.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, &NoProviderError{Locator: locator, Factory: f}
	}
	return prov, nil
}

// UpdateCache refreshes the cached metadata of every constructed provider
// in registration order, then persists the cache document.
func (s *ModStore) UpdateCache(ctx context.Context) error {
	for _, f := range s.registry.Factories() {
		s.mu.RLock()
		prov, ok := s.providers[f.ID]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		s.log().Info("updating provider cache", "provider", f.ID)
		if err := prov.UpdateCache(ctx, s.cache); err != nil {
			return fmt.Errorf("update %s cache: %w", f.ID, err)
		}
	}
	return s.cache.Save()
}

// SaveCache persists the provider cache document.
func (s *ModStore) SaveCache() error {
	return s.cache.Save()
}

// GetModInfo reconstructs mod info for spec from cached state. No network
// traffic is performed.
func (s *ModStore) GetModInfo(spec ModSpecification) (*ModInfo, bool) {
	prov, err := s.provider(spec.URL)
	if err != nil {
		return nil, false
	}
	return prov.GetModInfo(spec, s.cache)
}

// IsPinned reports whether spec pins exact content. Specs without a
// constructed provider report false.
func (s *ModStore) IsPinned(spec ModSpecification) bool {
	prov, err := s.provider(spec.URL)
	if err != nil {
		return false
	}
	return prov.IsPinned(spec, s.cache)
}

// GetVersionName names the version spec selects, from cached state.
func (s *ModStore) GetVersionName(spec ModSpecification) (string, bool) {
	prov, err := s.provider(spec.URL)
	if err != nil {
		return "", false
	}
	return prov.GetVersionName(spec, s.cache)
}
