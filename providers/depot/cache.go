package depot

import (
	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/providercache"
)

// cacheSection is the provider's section in the shared cache document,
// scoped per host so sections survive pointing the provider at a
// different deployment.
type cacheSection struct {
	Hosts map[string]*hostSection `json:"hosts,omitempty"`
}

// hostSection caches what the provider has learned about one deployment.
type hostSection struct {
	// NameIDs maps mod name ids to numeric mod ids.
	NameIDs map[string]int64 `json:"name_ids,omitempty"`

	// Mods maps mod ids to their metadata.
	Mods map[int64]Mod `json:"mods,omitempty"`

	// Deps maps mod ids to their dependency lists. An entry is present
	// once dependencies were fetched, even when the list is empty.
	Deps map[int64][]Dependency `json:"dependencies,omitempty"`

	// FileBlobs maps file ids to the blobs holding their payloads.
	FileBlobs map[int64]blobcache.Ref `json:"file_blobs,omitempty"`
}

// host returns the mutable section for name, creating it and its maps as
// needed. Only call under providercache.Update.
func (s *cacheSection) host(name string) *hostSection {
	if s.Hosts == nil {
		s.Hosts = make(map[string]*hostSection)
	}
	h, ok := s.Hosts[name]
	if !ok {
		h = &hostSection{}
		s.Hosts[name] = h
	}
	if h.NameIDs == nil {
		h.NameIDs = make(map[string]int64)
	}
	if h.Mods == nil {
		h.Mods = make(map[int64]Mod)
	}
	if h.Deps == nil {
		h.Deps = make(map[int64][]Dependency)
	}
	if h.FileBlobs == nil {
		h.FileBlobs = make(map[int64]blobcache.Ref)
	}
	return h
}

// cachedHost returns a snapshot of the configured host's section.
func (p *Provider) cachedHost(cache *providercache.Cache) (hostSection, bool) {
	sec, ok := providercache.Read[cacheSection](cache, ID)
	if !ok {
		return hostSection{}, false
	}
	h, ok := sec.Hosts[p.host]
	if !ok || h == nil {
		return hostSection{}, false
	}
	return *h, true
}

func (p *Provider) storeMod(cache *providercache.Cache, mod Mod) error {
	return providercache.Update(cache, ID, func(s *cacheSection) {
		h := s.host(p.host)
		h.NameIDs[mod.NameID] = mod.ID
		h.Mods[mod.ID] = mod
	})
}

func (p *Provider) storeDeps(cache *providercache.Cache, modID int64, deps []Dependency) error {
	return providercache.Update(cache, ID, func(s *cacheSection) {
		s.host(p.host).Deps[modID] = deps
	})
}

func (p *Provider) storeFileBlob(cache *providercache.Cache, fileID int64, ref blobcache.Ref) error {
	return providercache.Update(cache, ID, func(s *cacheSection) {
		s.host(p.host).FileBlobs[fileID] = ref
	})
}
