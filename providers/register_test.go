package providers_test

import (
	"bytes"
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariangheata53/mint"
	"github.com/mariangheata53/mint/providers"
	"github.com/mariangheata53/mint/providers/depot"
	"github.com/mariangheata53/mint/providers/file"
	modhttp "github.com/mariangheata53/mint/providers/http"
	"github.com/mariangheata53/mint/providers/oci"
)

func zipBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("mod.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("mod content"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRegisterOrder(t *testing.T) {
	t.Parallel()

	reg := mint.NewRegistry()
	require.NoError(t, providers.Register(reg))

	var ids []string
	for _, f := range reg.Factories() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{file.ID, depot.ID, oci.ID, modhttp.ID}, ids)
}

func TestRegisterTwice(t *testing.T) {
	t.Parallel()

	reg := mint.NewRegistry()
	require.NoError(t, providers.Register(reg))

	err := providers.Register(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisteredStore(t *testing.T) {
	t.Parallel()

	reg := mint.NewRegistry()
	require.NoError(t, providers.Register(reg))

	// No depot parameters: the depot factory stays unconstructed.
	store, err := mint.New(t.TempDir(), reg, nil)
	require.NoError(t, err)
	ctx := context.Background()

	payload := zipBytes(t)
	localPath := filepath.Join(t.TempDir(), "local-mod.zip")
	require.NoError(t, os.WriteFile(localPath, payload, 0o644))

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)
	remoteURL := server.URL + "/release/tool.zip"

	results, err := store.ResolveMods(ctx, []mint.ModSpecification{
		{URL: localPath},
		{URL: remoteURL},
	}, false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	local, ok := results[mint.ModSpecification{URL: localPath}]
	require.True(t, ok)
	assert.Equal(t, file.ID, local.Provider)
	assert.False(t, local.Status.Resolvable())
	assert.Equal(t, "local-mod.zip", local.Status.Name)

	remote, ok := results[mint.ModSpecification{URL: remoteURL}]
	require.True(t, ok)
	assert.Equal(t, modhttp.ID, remote.Provider)
	require.True(t, remote.Status.Resolvable())
	assert.Equal(t, remoteURL, remote.Status.Resolution.URL)

	paths, err := store.FetchModsOrdered(ctx, []mint.ModResolution{*remote.Status.Resolution}, false, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	got, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// The oci provider needs no parameters and serves pinned locators
	// without any network traffic.
	d := digest.FromString("pinned")
	pinned := mint.ModSpecification{URL: "oci://registry.example.com/mods@" + d.String()}
	assert.True(t, store.IsPinned(pinned))
	name, ok := store.GetVersionName(pinned)
	require.True(t, ok)
	assert.Equal(t, d.Encoded()[:12], name)
}

func TestRegisteredStoreReportsUnconfiguredFactory(t *testing.T) {
	t.Parallel()

	reg := mint.NewRegistry()
	require.NoError(t, providers.Register(reg))
	store, err := mint.New(t.TempDir(), reg, nil)
	require.NoError(t, err)

	_, err = store.ResolveMods(context.Background(), []mint.ModSpecification{
		{URL: "depot://mods.example.net/alpha"},
	}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, mint.ErrNoProvider)

	var npErr *mint.NoProviderError
	require.ErrorAs(t, err, &npErr)
	require.NotNil(t, npErr.Factory)
	assert.Equal(t, depot.ID, npErr.Factory.ID)
}
