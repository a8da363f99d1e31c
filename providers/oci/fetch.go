package oci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/internal/ziputil"
	"github.com/mariangheata53/mint/providercache"
)

var (
	// ErrNotFound is returned when the registry has no artifact at the
	// reference.
	ErrNotFound = errors.New("artifact not found")

	// ErrUnauthorized is returned when the registry rejects the
	// credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// Fetch implements mint.Provider. The resolution must be digest-pinned.
// Payloads are cached by manifest digest; pinned content never changes, so
// a cached blob satisfies the fetch even when update is requested.
func (p *Provider) Fetch(ctx context.Context, res mint.ModResolution, _ bool, cache *providercache.Cache, blobs *blobcache.Cache, progress chan<- mint.FetchProgress) (string, error) {
	ref, err := parseLocator(res.URL)
	if err != nil {
		return "", err
	}
	d, ok := pinnedDigest(ref)
	if !ok {
		return "", fmt.Errorf("%w: %q names no digest", mint.ErrNotPinned, res.URL)
	}

	if section, ok := providercache.Read[cacheSection](cache, ID); ok {
		if ref, ok := section.Blobs[d.String()]; ok {
			if path, ok := blobs.Path(ref); ok {
				p.log().Debug("payload blob cache hit", "digest", d.String())
				if progress != nil {
					progress <- mint.FetchProgress{Resolution: res, Stage: mint.StageComplete}
				}
				return path, nil
			}
		}
	}

	repo, err := p.repository(ref)
	if err != nil {
		return "", err
	}
	manifestDesc, manifestRC, err := repo.FetchReference(ctx, d.String())
	if err != nil {
		return "", fmt.Errorf("fetch manifest %s: %w", d, mapError(err))
	}
	manifestJSON, err := content.ReadAll(manifestRC, manifestDesc)
	manifestRC.Close()
	if err != nil {
		return "", fmt.Errorf("read manifest %s: %w", d, err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return "", fmt.Errorf("decode manifest %s: %w", d, err)
	}
	layer, err := payloadLayer(manifest)
	if err != nil {
		return "", err
	}

	layerRC, err := repo.Fetch(ctx, layer)
	if err != nil {
		return "", fmt.Errorf("fetch payload %s: %w", layer.Digest, mapError(err))
	}
	defer layerRC.Close()

	var total uint64
	if layer.Size > 0 {
		total = uint64(layer.Size)
	}
	pw := mint.NewProgressWriter(progress, res, total)
	data, err := content.ReadAll(io.TeeReader(layerRC, pw), layer)
	if err != nil {
		return "", fmt.Errorf("read payload %s: %w", layer.Digest, err)
	}
	if isZipMediaType(layer.MediaType) {
		if err := ziputil.Verify(data); err != nil {
			return "", fmt.Errorf("%w: layer %s: %v", mint.ErrUnexpectedContent, layer.Digest, err)
		}
	}

	blobRef, err := blobs.Write(data)
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	err = providercache.Update(cache, ID, func(s *cacheSection) {
		if s.Blobs == nil {
			s.Blobs = make(map[string]blobcache.Ref)
		}
		s.Blobs[d.String()] = blobRef
	})
	if err != nil {
		return "", err
	}
	path, ok := blobs.Path(blobRef)
	if !ok {
		return "", fmt.Errorf("blob %s missing after write", blobRef)
	}
	pw.Complete()
	return path, nil
}

// payloadLayer selects the mod payload from the manifest layers, most
// specific media type first.
func payloadLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	for _, mediaType := range []string{LayerMediaType, "application/zip", "application/octet-stream"} {
		for _, layer := range manifest.Layers {
			if layer.MediaType == mediaType {
				return layer, nil
			}
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("%w: manifest has no mod payload layer", mint.ErrUnexpectedContent)
}

func isZipMediaType(mediaType string) bool {
	return mediaType == "application/zip" || strings.HasSuffix(mediaType, "+zip")
}

// mapError translates ORAS errors into package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case nethttp.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return err
}
