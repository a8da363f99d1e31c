package depot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	neturl "net/url"
	"time"
)

var (
	// ErrNotFound is returned when the API has no record for a mod, file,
	// or search term.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the API rejects the configured
	// token.
	ErrUnauthorized = errors.New("unauthorized")
)

// maxResponseBytes caps API response bodies.
const maxResponseBytes = 8 << 20

// Mod is the wire and cache representation of a hosted mod.
type Mod struct {
	ID           int64    `json:"id"`
	NameID       string   `json:"name_id"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags,omitempty"`
	LatestFileID int64    `json:"latest_file_id,omitempty"`
	Files        []File   `json:"files,omitempty"`
}

// File is one published artifact of a mod. Files never change once
// published; new content gets a new file id.
type File struct {
	ID        int64     `json:"id"`
	Version   string    `json:"version"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Dependency names another mod a mod requires. The pair of ids lets the
// provider emit canonical dependency specifications without extra lookups.
type Dependency struct {
	ModID  int64  `json:"mod_id"`
	NameID string `json:"name_id"`
}

func (p *Provider) baseURL() string {
	scheme := "https"
	if p.plainHTTP {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/api/v1", scheme, p.host)
}

func (p *Provider) getJSON(ctx context.Context, url string, out any) error {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case nethttp.StatusOK:
	case nethttp.StatusNotFound:
		return fmt.Errorf("%s: %w", url, ErrNotFound)
	case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
		return fmt.Errorf("%s: %w", url, ErrUnauthorized)
	default:
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// searchMods looks up mods by their name id.
func (p *Provider) searchMods(ctx context.Context, nameID string) ([]Mod, error) {
	url := fmt.Sprintf("%s/mods?name_id=%s", p.baseURL(), neturl.QueryEscape(nameID))
	var mods []Mod
	if err := p.getJSON(ctx, url, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

func (p *Provider) getMod(ctx context.Context, id int64) (Mod, error) {
	var mod Mod
	if err := p.getJSON(ctx, fmt.Sprintf("%s/mods/%d", p.baseURL(), id), &mod); err != nil {
		return Mod{}, err
	}
	return mod, nil
}

func (p *Provider) getDependencies(ctx context.Context, id int64) ([]Dependency, error) {
	var deps []Dependency
	if err := p.getJSON(ctx, fmt.Sprintf("%s/mods/%d/dependencies", p.baseURL(), id), &deps); err != nil {
		return nil, err
	}
	return deps, nil
}
