package mint

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProvider is returned when no registered provider accepts a
	// locator.
	ErrNoProvider = errors.New("no provider for specification")

	// ErrMissingParameter is returned when a provider factory is
	// constructed without one of its declared parameters.
	ErrMissingParameter = errors.New("missing provider parameter")

	// ErrRedirectLoop is returned when provider redirects revisit a
	// specification or exceed the redirect budget.
	ErrRedirectLoop = errors.New("redirect loop")

	// ErrUnexpectedContent is returned when fetched content fails a
	// provider's payload validation.
	ErrUnexpectedContent = errors.New("unexpected content")

	// ErrNotPinned is returned when a fetch is asked for a resolution that
	// does not pin exact content.
	ErrNotPinned = errors.New("resolution not fully specified")
)

// NoProviderError reports a locator that no constructed provider accepts.
// It unwraps to ErrNoProvider.
type NoProviderError struct {
	// Locator is the specification or resolution URL that failed to match.
	Locator string

	// Factory is a registered factory that recognizes the locator but has
	// not been constructed, typically because its parameters are missing.
	// Nil when no factory matched at all.
	Factory *Factory
}

// Error implements error.
func (e *NoProviderError) Error() string {
	if e.Factory != nil {
		return fmt.Sprintf("%s provider not configured for %q", e.Factory.ID, e.Locator)
	}
	return fmt.Sprintf("no provider for %q", e.Locator)
}

// Is reports whether target is ErrNoProvider.
func (e *NoProviderError) Is(target error) bool {
	return target == ErrNoProvider
}
