package mint

// ModSpecification identifies a mod by an opaque locator string. Two
// specifications denote the same mod exactly when their locators are
// byte-identical; no normalization is applied.
type ModSpecification struct {
	URL string `json:"url"`
}

// ModResolution pins a mod to concrete fetchable content. Providers issue
// resolutions during resolve and accept them back verbatim in Fetch; a
// resolution is never rewritten once issued.
type ModResolution struct {
	URL string `json:"url"`
}

// ResolvableStatus reports whether resolved mod content can be fetched.
type ResolvableStatus struct {
	// Resolution is the fetch coordinate. Nil for artifacts that resolve to
	// metadata only.
	Resolution *ModResolution `json:"resolution,omitempty"`

	// Name is the display name for unresolvable artifacts.
	Name string `json:"name,omitempty"`
}

// Resolvable reports whether the status carries a fetch coordinate.
func (s ResolvableStatus) Resolvable() bool {
	return s.Resolution != nil
}

// ModInfo describes a resolved mod.
type ModInfo struct {
	// Provider is the id of the provider that resolved the mod.
	Provider string `json:"provider"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// Spec is the canonical specification for the mod. Well-behaved
	// providers emit dependency suggestions in this exact form.
	Spec ModSpecification `json:"spec"`

	// Versions lists the known version specifications, most preferred
	// first.
	Versions []ModSpecification `json:"versions"`

	// Status carries the fetch coordinate, when one exists.
	Status ResolvableStatus `json:"status"`

	// SuggestedRequire marks mods the provider recommends enabling for
	// every participant.
	SuggestedRequire bool `json:"suggested_require,omitempty"`

	// SuggestedDependencies lists specifications that should be resolved
	// alongside this mod.
	SuggestedDependencies []ModSpecification `json:"suggested_dependencies,omitempty"`
}

// ModResponse is a provider's answer to one resolution step. Exactly one
// field is set: Resolve for a terminal answer, Redirect to continue with a
// more precise specification.
type ModResponse struct {
	Resolve  *ModInfo
	Redirect *ModSpecification
}
