package depot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"mime"
	nethttp "net/http"
	"slices"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/internal/ziputil"
	"github.com/mariangheata53/mint/providercache"
)

// Fetch implements mint.Provider. Only fully specified resolutions can be
// fetched. Published files are immutable, so a cached blob satisfies the
// fetch even when update is requested.
func (p *Provider) Fetch(ctx context.Context, res mint.ModResolution, _ bool, cache *providercache.Cache, blobs *blobcache.Cache, progress chan<- mint.FetchProgress) (string, error) {
	c, ok := parseLocator(res.URL)
	if !ok {
		return "", fmt.Errorf("malformed depot resolution %q", res.URL)
	}
	if err := p.checkHost(c); err != nil {
		return "", err
	}
	if c.fileID == 0 {
		return "", fmt.Errorf("%w: %q names no file id", mint.ErrNotPinned, res.URL)
	}

	if h, ok := p.cachedHost(cache); ok {
		if ref, ok := h.FileBlobs[c.fileID]; ok {
			if path, ok := blobs.Path(ref); ok {
				p.log().Debug("file blob cache hit", "file", c.fileID)
				if progress != nil {
					progress <- mint.FetchProgress{Resolution: res, Stage: mint.StageComplete}
				}
				return path, nil
			}
		}
	}

	url := fmt.Sprintf("%s/mods/%d/files/%d/download", p.baseURL(), c.modID, c.fileID)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file %d: %w", c.fileID, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case nethttp.StatusOK:
	case nethttp.StatusNotFound:
		return "", fmt.Errorf("download file %d: %w", c.fileID, ErrNotFound)
	case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
		return "", fmt.Errorf("download file %d: %w", c.fileID, ErrUnauthorized)
	default:
		return "", fmt.Errorf("download file %d: unexpected status %s", c.fileID, resp.Status)
	}
	if err := checkPayloadType(resp.Header.Get("Content-Type")); err != nil {
		return "", fmt.Errorf("download file %d: %w", c.fileID, err)
	}

	var total uint64
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	pw := mint.NewProgressWriter(progress, res, total)
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, pw), resp.Body); err != nil {
		return "", fmt.Errorf("download file %d: %w", c.fileID, err)
	}
	data := buf.Bytes()
	if err := ziputil.Verify(data); err != nil {
		return "", fmt.Errorf("%w: file %d: %v", mint.ErrUnexpectedContent, c.fileID, err)
	}

	ref, err := blobs.Write(data)
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	if err := p.storeFileBlob(cache, c.fileID, ref); err != nil {
		return "", err
	}
	path, ok := blobs.Path(ref)
	if !ok {
		return "", fmt.Errorf("blob %s missing after write", ref)
	}
	pw.Complete()
	return path, nil
}

func checkPayloadType(value string) error {
	if value == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return fmt.Errorf("%w: bad content type %q", mint.ErrUnexpectedContent, value)
	}
	switch mediaType {
	case "application/zip", "application/octet-stream":
		return nil
	default:
		return fmt.Errorf("%w: content type %q", mint.ErrUnexpectedContent, mediaType)
	}
}

// UpdateCache implements mint.Provider by re-fetching the metadata and
// dependency lists of every cached mod on the configured host.
func (p *Provider) UpdateCache(ctx context.Context, cache *providercache.Cache) error {
	h, ok := p.cachedHost(cache)
	if !ok {
		return nil
	}
	for _, id := range slices.Sorted(maps.Keys(h.Mods)) {
		p.log().Debug("refreshing mod", "mod", id)
		mod, err := p.getMod(ctx, id)
		if err != nil {
			return fmt.Errorf("refresh mod %d: %w", id, err)
		}
		if err := p.storeMod(cache, mod); err != nil {
			return err
		}
		deps, err := p.getDependencies(ctx, id)
		if err != nil {
			return fmt.Errorf("refresh dependencies of mod %d: %w", id, err)
		}
		if err := p.storeDeps(cache, id, deps); err != nil {
			return err
		}
	}
	return nil
}
