package mint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariangheata53/mint/blobcache"
	"github.com/mariangheata53/mint/providercache"
)

func res(url string) ModResolution {
	return ModResolution{URL: url}
}

// pathFetcher fetches by mapping the resolution URL to a fixed path, with
// an optional artificial delay parsed from the URL.
func pathFetcher() *fakeProvider {
	return &fakeProvider{
		FetchFunc: func(_ context.Context, r ModResolution, _ bool, _ *providercache.Cache, _ *blobcache.Cache, progress chan<- FetchProgress) (string, error) {
			if rest, ok := strings.CutPrefix(r.URL, "fake://slow/"); ok {
				var ms int
				fmt.Sscanf(rest, "%d", &ms)
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
			if progress != nil {
				progress <- FetchProgress{Resolution: r, Stage: StageComplete}
			}
			return "/blobs/" + strings.TrimPrefix(r.URL, "fake://"), nil
		},
	}
}

func TestFetchMods(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, fakeFactory("fake", "fake://", pathFetcher()))

	resolutions := []ModResolution{res("fake://a"), res("fake://b"), res("fake://c")}
	paths, err := store.FetchMods(context.Background(), resolutions, false, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/blobs/a", "/blobs/b", "/blobs/c"}, paths)
}

func TestFetchModsOrdered(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, fakeFactory("fake", "fake://", pathFetcher()))

	// The first resolution finishes last; output order must still follow
	// input order.
	resolutions := []ModResolution{res("fake://slow/40"), res("fake://slow/20"), res("fake://slow/0")}
	paths, err := store.FetchModsOrdered(context.Background(), resolutions, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/blobs/slow/40", "/blobs/slow/20", "/blobs/slow/0"}, paths)
}

func TestFetchModsErrorAborts(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{
		FetchFunc: func(_ context.Context, r ModResolution, _ bool, _ *providercache.Cache, _ *blobcache.Cache, _ chan<- FetchProgress) (string, error) {
			if r.URL == "fake://bad" {
				return "", errors.New("mirror offline")
			}
			return "/blobs/ok", nil
		},
	}
	store := newTestStore(t, fakeFactory("fake", "fake://", p))
	resolutions := []ModResolution{res("fake://ok"), res("fake://bad")}

	paths, err := store.FetchMods(context.Background(), resolutions, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror offline")
	assert.Nil(t, paths)

	paths, err = store.FetchModsOrdered(context.Background(), resolutions, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror offline")
	assert.Nil(t, paths)
}

func TestFetchModsNoProvider(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.FetchMods(context.Background(), []ModResolution{res("mystery://x")}, false, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestFetchModsProgress(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, fakeFactory("fake", "fake://", pathFetcher()))

	progress := make(chan FetchProgress, 16)
	resolutions := []ModResolution{res("fake://a"), res("fake://b")}
	_, err := store.FetchModsOrdered(context.Background(), resolutions, false, progress)
	require.NoError(t, err)

	var events []FetchProgress
	for len(progress) > 0 {
		events = append(events, <-progress)
	}
	require.Len(t, events, 2)
	urls := []string{events[0].Resolution.URL, events[1].Resolution.URL}
	assert.ElementsMatch(t, []string{"fake://a", "fake://b"}, urls)
	for _, ev := range events {
		assert.Equal(t, StageComplete, ev.Stage)
	}
}

func TestFetchModsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, fakeFactory("fake", "fake://", pathFetcher()))
	paths, err := store.FetchMods(context.Background(), nil, false, nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
