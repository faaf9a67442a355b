package acquire

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarize/artifact"
	"blogarize/config"
	"blogarize/types"
)

type fakeResolver struct {
	title string
	err   error
	calls int
}

func (f *fakeResolver) Title(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.title, f.err
}

func newLinkAcquirer(t *testing.T, resolver Resolver) (*LinkAcquirer, *artifact.Store, *int) {
	t.Helper()
	store := artifact.NewStore(t.TempDir())
	a := NewLinkAcquirerWithResolver(config.Default(), store, resolver)
	fetches := 0
	a.runFetch = func(_ context.Context, _, dest string) error {
		fetches++
		return artifact.WriteFile(dest, []byte("audio-stream"))
	}
	return a, store, &fetches
}

func TestFetchResolvesAndDownloads(t *testing.T) {
	resolver := &fakeResolver{title: "My Great Video"}
	a, store, fetches := newLinkAcquirer(t, resolver)

	title, base, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)

	assert.Equal(t, "My Great Video", title)
	assert.Equal(t, "My_Great_Video", base)
	assert.Equal(t, 1, *fetches)
	assert.True(t, store.Complete(base, artifact.Source))
}

func TestFetchSkipsWhenSourceExists(t *testing.T) {
	resolver := &fakeResolver{title: "My Great Video"}
	a, store, fetches := newLinkAcquirer(t, resolver)
	require.NoError(t, os.WriteFile(store.Path("My_Great_Video", artifact.Source), []byte("cached"), 0644))

	_, base, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)

	assert.Equal(t, "My_Great_Video", base)
	assert.Equal(t, 0, *fetches, "existing source artifact must not be refetched")
}

func TestFetchRejectsForeignDomain(t *testing.T) {
	resolver := &fakeResolver{title: "nope"}
	a, _, fetches := newLinkAcquirer(t, resolver)

	_, _, err := a.Fetch(context.Background(), "https://vimeo.com/watch?v=abc123")
	require.Error(t, err)

	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.ErrInvalidInput, stageErr.Kind)
	assert.Equal(t, 0, resolver.calls, "no metadata lookup for a rejected domain")
	assert.Equal(t, 0, *fetches)
}

func TestFetchRejectsLinkWithoutVideoID(t *testing.T) {
	a, _, _ := newLinkAcquirer(t, &fakeResolver{})

	_, _, err := a.Fetch(context.Background(), "https://www.youtube.com/feed/subscriptions")
	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.ErrInvalidInput, stageErr.Kind)
}

func TestFetchAcceptsShortsPath(t *testing.T) {
	resolver := &fakeResolver{title: "Short One"}
	a, _, _ := newLinkAcquirer(t, resolver)

	_, base, err := a.Fetch(context.Background(), "https://www.youtube.com/shorts/xyz789")
	require.NoError(t, err)
	assert.Equal(t, "Short_One", base)
	assert.Equal(t, 1, resolver.calls)
}

func TestFetchWrapsResolverFailure(t *testing.T) {
	a, _, fetches := newLinkAcquirer(t, &fakeResolver{err: errors.New("quota exceeded")})

	_, _, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	require.Error(t, err)

	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.ErrAcquisition, stageErr.Kind)
	assert.Contains(t, stageErr.Message, "quota exceeded")
	assert.Equal(t, 0, *fetches)
}

func TestFetchWrapsDownloadFailure(t *testing.T) {
	a, _, _ := newLinkAcquirer(t, &fakeResolver{title: "My Video"})
	a.runFetch = func(context.Context, string, string) error {
		return errors.New("network unreachable")
	}

	_, _, err := a.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc123")
	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.ErrAcquisition, stageErr.Kind)
	assert.Contains(t, stageErr.Message, "network unreachable")
}
