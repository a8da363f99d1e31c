// Package depot provides mods hosted on a depot mod repository.
//
// Mods are addressed as depot://<host>/<name_id>[#<mod_id>[/<file_id>]].
// Resolution walks that grammar left to right: a bare name redirects to the
// mod id, a mod id redirects to its latest published file, and a full
// locator is terminal. Published files are immutable, so fetched payloads
// are cached by file id for good.
//
// A provider instance is bound to one deployment: every API call goes to
// the configured host with the configured bearer token, and locators
// naming other hosts are rejected rather than leaking the credential.
package depot

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"regexp"
	"strconv"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/providercache"
)

// ID is the provider identifier.
const ID = "depot"

const defaultRetries = 3

// Provider talks to one depot deployment.
type Provider struct {
	host      string
	token     string
	plainHTTP bool
	retries   int
	client    *nethttp.Client
	logger    *slog.Logger
}

var _ mint.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for API calls and downloads.
// The default client retries rate-limited requests; a custom client is
// used as given.
func WithHTTPClient(client *nethttp.Client) Option {
	return func(p *Provider) { p.client = client }
}

// WithPlainHTTP uses plain HTTP instead of HTTPS to reach the host.
func WithPlainHTTP(enabled bool) Option {
	return func(p *Provider) { p.plainHTTP = enabled }
}

// WithLogger sets the logger. Logging is disabled when unset.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithRetries bounds how often a rate-limited request is retried.
func WithRetries(n int) Option {
	return func(p *Provider) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// New returns a provider for the depot deployment at host, authenticating
// with token.
func New(host, token string, opts ...Option) *Provider {
	p := &Provider{host: host, token: token, retries: defaultRetries}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = &nethttp.Client{
			Transport: &retryTransport{base: nethttp.DefaultTransport, retries: p.retries, logger: p.logger},
		}
	}
	return p
}

// Factory describes the provider for registry registration.
func Factory() mint.Factory {
	return mint.Factory{
		ID: ID,
		New: func(params map[string]string) (mint.Provider, error) {
			host := params["host"]
			if host == "" {
				return nil, fmt.Errorf("%w: depot requires %q", mint.ErrMissingParameter, "host")
			}
			token := params["token"]
			if token == "" {
				return nil, fmt.Errorf("%w: depot requires %q", mint.ErrMissingParameter, "token")
			}
			return New(host, token), nil
		},
		CanProvide: func(locator string) bool {
			_, ok := parseLocator(locator)
			return ok
		},
		Parameters: []mint.Parameter{
			{
				ID:          "host",
				Name:        "Depot host",
				Description: "Host name of the depot deployment, e.g. mods.example.net",
			},
			{
				ID:          "token",
				Name:        "API token",
				Description: "Personal access token presented as a bearer credential on every API call",
			},
		},
	}
}

func (p *Provider) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Locator grammar: depot://<host>/<name_id>[#<mod_id>[/<file_id>]].
var locatorRE = regexp.MustCompile(`^depot://([^/#]+)/([^/#]+)(?:#([0-9]+)(?:/([0-9]+))?)?$`)

// coords is a parsed locator. modID and fileID are zero when absent.
type coords struct {
	host   string
	nameID string
	modID  int64
	fileID int64
}

func parseLocator(locator string) (coords, bool) {
	m := locatorRE.FindStringSubmatch(locator)
	if m == nil {
		return coords{}, false
	}
	c := coords{host: m[1], nameID: m[2]}
	if m[3] != "" {
		id, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil || id == 0 {
			return coords{}, false
		}
		c.modID = id
	}
	if m[4] != "" {
		id, err := strconv.ParseInt(m[4], 10, 64)
		if err != nil || id == 0 {
			return coords{}, false
		}
		c.fileID = id
	}
	return c, true
}

// specURL renders the canonical locator at the given precision.
func (p *Provider) specURL(nameID string, modID, fileID int64) string {
	s := fmt.Sprintf("depot://%s/%s", p.host, nameID)
	if modID != 0 {
		s += fmt.Sprintf("#%d", modID)
		if fileID != 0 {
			s += fmt.Sprintf("/%d", fileID)
		}
	}
	return s
}

// checkHost rejects locators for deployments other than the configured
// one, so the bearer token is never sent elsewhere.
func (p *Provider) checkHost(c coords) error {
	if c.host != p.host {
		return fmt.Errorf("provider is configured for %s, locator names %s", p.host, c.host)
	}
	return nil
}

// Check implements mint.Provider by probing the API ping endpoint with the
// configured credential.
func (p *Provider) Check(ctx context.Context) error {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, p.baseURL()+"/ping", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		return fmt.Errorf("ping %s: unexpected status %s", p.host, resp.Status)
	}
	return nil
}

// GetModInfo implements mint.Provider. It needs the mod and its
// dependencies cached; anything less reports false.
func (p *Provider) GetModInfo(spec mint.ModSpecification, cache *providercache.Cache) (*mint.ModInfo, bool) {
	c, ok := parseLocator(spec.URL)
	if !ok || c.host != p.host {
		return nil, false
	}
	h, ok := p.cachedHost(cache)
	if !ok {
		return nil, false
	}
	id := c.modID
	if id == 0 {
		if id, ok = h.NameIDs[c.nameID]; !ok {
			return nil, false
		}
	}
	mod, ok := h.Mods[id]
	if !ok {
		return nil, false
	}
	deps, ok := h.Deps[id]
	if !ok {
		return nil, false
	}
	fileID := c.fileID
	if fileID == 0 {
		fileID = mod.LatestFileID
	}
	if fileID == 0 {
		return nil, false
	}
	return p.modInfo(mod, fileID, deps), true
}

// IsPinned implements mint.Provider. Only locators naming a file id pin
// exact content.
func (p *Provider) IsPinned(spec mint.ModSpecification, _ *providercache.Cache) bool {
	c, ok := parseLocator(spec.URL)
	return ok && c.host == p.host && c.fileID != 0
}

// GetVersionName implements mint.Provider.
func (p *Provider) GetVersionName(spec mint.ModSpecification, cache *providercache.Cache) (string, bool) {
	c, ok := parseLocator(spec.URL)
	if !ok || c.host != p.host {
		return "", false
	}
	if c.fileID == 0 {
		return "latest", true
	}
	h, ok := p.cachedHost(cache)
	if !ok {
		return "", false
	}
	id := c.modID
	if id == 0 {
		if id, ok = h.NameIDs[c.nameID]; !ok {
			return "", false
		}
	}
	mod, ok := h.Mods[id]
	if !ok {
		return "", false
	}
	for _, f := range mod.Files {
		if f.ID == c.fileID {
			if f.Version == "" {
				return strconv.FormatInt(f.ID, 10), true
			}
			return fmt.Sprintf("%d - %s", f.ID, f.Version), true
		}
	}
	return "", false
}
