package mint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/providercache"
)

// Provider resolves and fetches mods for one family of specifications.
//
// Resolve and Fetch may hit the network and must honor their context. The
// cache-only methods (GetModInfo, IsPinned, GetVersionName) never touch the
// network and report absence instead of failing.
//
// Providers share one cache document and must confine themselves to their
// own section; see the providercache package for the access contract.
type Provider interface {
	// Resolve answers one resolution step for spec. The response either
	// carries terminal mod info or redirects to a more precise
	// specification. update bypasses cached metadata.
	Resolve(ctx context.Context, spec ModSpecification, update bool, cache *providercache.Cache) (ModResponse, error)

	// Fetch retrieves the content behind res and returns a local file
	// path. Events are sent on progress when it is non-nil; a successful
	// fetch ends with one StageComplete event, cache hits included.
	Fetch(ctx context.Context, res ModResolution, update bool, cache *providercache.Cache, blobs *blobcache.Cache, progress chan<- FetchProgress) (string, error)

	// UpdateCache refreshes the metadata the provider has cached.
	UpdateCache(ctx context.Context, cache *providercache.Cache) error

	// Check verifies connectivity and credentials.
	Check(ctx context.Context) error

	// GetModInfo reconstructs mod info for spec from cached state.
	GetModInfo(spec ModSpecification, cache *providercache.Cache) (*ModInfo, bool)

	// IsPinned reports whether spec pins exact content.
	IsPinned(spec ModSpecification, cache *providercache.Cache) bool

	// GetVersionName names the version spec selects, from cached state.
	GetVersionName(spec ModSpecification, cache *providercache.Cache) (string, bool)
}

// Parameter describes one construction parameter of a provider factory,
// with enough detail to prompt a user for its value.
type Parameter struct {
	// ID is the key the value is passed under.
	ID string

	// Name is a short human-readable label.
	Name string

	// Description explains what the value is and where it comes from.
	Description string

	// Link is an optional URL with instructions for obtaining the value.
	Link string
}

// Factory describes how to recognize and construct one kind of provider.
type Factory struct {
	// ID is the stable provider identifier. It is also the provider's
	// section key in the shared cache document.
	ID string

	// New constructs the provider from its parameters.
	New func(params map[string]string) (Provider, error)

	// CanProvide reports whether the provider handles locator.
	CanProvide func(locator string) bool

	// Parameters lists the construction parameters. A store constructs the
	// factory only when values for all of them are supplied.
	Parameters []Parameter
}

// Registry is an ordered, append-only collection of provider factories.
// A locator is served by the first registered factory that accepts it, so
// registration order is part of the contract.
//
// Registries start empty; builtin factories are added explicitly, see the
// providers package.
type Registry struct {
	mu        sync.RWMutex
	factories []Factory
	ids       map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Register appends f. Factories cannot be replaced or removed; registering
// a duplicate id is an error.
func (r *Registry) Register(f Factory) error {
	if f.ID == "" {
		return errors.New("factory id is empty")
	}
	if f.New == nil || f.CanProvide == nil {
		return fmt.Errorf("factory %q is incomplete", f.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[f.ID]; ok {
		return fmt.Errorf("factory %q already registered", f.ID)
	}
	r.ids[f.ID] = struct{}{}
	r.factories = append(r.factories, f)
	return nil
}

// Factories returns the registered factories in registration order.
func (r *Registry) Factories() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Factory, len(r.factories))
	copy(out, r.factories)
	return out
}

// Match returns the first registered factory that accepts locator.
func (r *Registry) Match(locator string) (*Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.factories {
		if r.factories[i].CanProvide(locator) {
			f := r.factories[i]
			return &f, true
		}
	}
	return nil, false
}
