// Package mint resolves mod specifications to fetchable artifacts,
// discovers their transitive dependency closure, and retrieves payloads
// into a local content-addressed store.
//
// This package provides the orchestration core through [ModStore]. Mod
// backends implement [Provider] and are matched to locators via an ordered
// [Registry]; the builtin backends live in the providers subpackage.
//
// A store owns two pieces of disk state under its root directory:
//   - cache.json: one shared JSON document of provider-private cache sections
//   - blobs/: fetched payloads, one flat file per content digest
//
// # Quick Start
//
// Open a store with the builtin providers and resolve a closure:
//
//	reg := mint.NewRegistry()
//	if err := providers.Register(reg); err != nil {
//	    return err
//	}
//	store, err := mint.New("/var/lib/mint", reg, map[string]map[string]string{
//	    "depot": {"host": "mods.example.net", "token": token},
//	})
//	if err != nil {
//	    return err
//	}
//	mods, err := store.ResolveMods(ctx, specs, false)
//
// Fetch the resolved content, preserving input order:
//
//	resolutions := make([]mint.ModResolution, 0, len(mods))
//	for _, info := range mods {
//	    if info.Status.Resolvable() {
//	        resolutions = append(resolutions, *info.Status.Resolution)
//	    }
//	}
//	paths, err := store.FetchModsOrdered(ctx, resolutions, false, nil)
//
// # Progress
//
// Fetches report transfer progress over a caller-supplied channel:
//
//	events := make(chan mint.FetchProgress)
//	go func() {
//	    for ev := range events {
//	        log.Printf("%s %s %d/%d", ev.Resolution.URL, ev.Stage, ev.Done, ev.Total)
//	    }
//	}()
//	paths, err := store.FetchMods(ctx, resolutions, false, events)
package mint
