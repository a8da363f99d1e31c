// Package providers registers the built-in mod providers.
package providers

import (
	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/providers/depot"
	"github.com/mariangheata53/mint/providers/file"
	"github.com/mariangheata53/mint/providers/http"
	"github.com/mariangheata53/mint/providers/oci"
)

// Register adds every built-in provider factory to the registry. Factories
// are registered from most to least specific, so locator matching tries the
// file provider first and falls through to the generic http provider last.
func Register(reg *mint.Registry) error {
	for _, factory := range []mint.Factory{
		file.Factory(),
		depot.Factory(),
		oci.Factory(),
		http.Factory(),
	} {
		if err := reg.Register(factory); err != nil {
			return err
		}
	}
	return nil
}
