package audio

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

func newExtractor(t *testing.T) (*Extractor, *artifact.Store) {
	t.Helper()
	store := artifact.NewStore(t.TempDir())
	return New(config.Default(), store), store
}

func TestExtractCacheHit(t *testing.T) {
	e, store := newExtractor(t)
	dest := store.Path("vid", artifact.Audio)
	require.NoError(t, os.WriteFile(dest, []byte("RIFF"), 0644))

	calls := 0
	e.runFFmpeg = func(context.Context, ...string) error {
		calls++
		return nil
	}

	got, err := e.Extract(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, dest, got)
	assert.Equal(t, 0, calls, "existing wav must not be re-extracted")
}

func TestExtractVideoPath(t *testing.T) {
	e, store := newExtractor(t)
	dest := store.Path("vid", artifact.Audio)

	var invocations [][]string
	e.runFFmpeg = func(_ context.Context, args ...string) error {
		invocations = append(invocations, args)
		return os.WriteFile(dest, []byte("RIFF"), 0644)
	}

	got, err := e.Extract(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	require.Len(t, invocations, 1)
	assert.Contains(t, invocations[0], "-vn", "first attempt selects the audio track of a video")
	assert.Contains(t, invocations[0], "pcm_s32le")
	assert.Contains(t, invocations[0], "44100")
}

func TestExtractFallsBackToRawAudio(t *testing.T) {
	e, store := newExtractor(t)
	dest := store.Path("vid", artifact.Audio)

	var invocations [][]string
	e.runFFmpeg = func(_ context.Context, args ...string) error {
		invocations = append(invocations, args)
		if len(invocations) == 1 {
			return errors.New("no video stream")
		}
		return os.WriteFile(dest, []byte("RIFF"), 0644)
	}

	got, err := e.Extract(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	require.Len(t, invocations, 2)
	assert.NotContains(t, invocations[1], "-vn", "fallback treats the input as bare audio")
}

func TestExtractBothAttemptsFail(t *testing.T) {
	e, store := newExtractor(t)
	dest := store.Path("vid", artifact.Audio)

	e.runFFmpeg = func(context.Context, ...string) error {
		// simulate ffmpeg leaving a partial file behind
		os.WriteFile(dest, []byte("junk"), 0644)
		return errors.New("invalid data found")
	}

	_, err := e.Extract(context.Background(), "vid")
	require.Error(t, err)

	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.ErrConversion, stageErr.Kind)
	assert.Contains(t, stageErr.Message, "neither a valid video nor audio file")
	assert.False(t, artifact.ExistsNonEmpty(dest), "partial output must be removed")
}

func TestExtractEmptyOutputIsFailure(t *testing.T) {
	e, _ := newExtractor(t)

	// ffmpeg "succeeds" but writes nothing usable
	e.runFFmpeg = func(context.Context, ...string) error { return nil }

	_, err := e.Extract(context.Background(), "vid")
	var stageErr *types.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.ErrConversion, stageErr.Kind)
}
