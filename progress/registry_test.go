package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogarize/types"
)

func TestAdvanceFollowsCheckpoints(t *testing.T) {
	r := NewRegistry()
	tr := r.Create("job-1")

	order := []types.State{
		types.StateInit,
		types.StateDownloaded,
		types.StateConvertedAudio,
		types.StateTranscribed,
		types.StateSummarized,
		types.StateOutlined,
		types.StateContent,
		types.StateHeaderImage,
	}

	var seen []float64
	for _, st := range order {
		tr.Advance(st, string(st))
		seen = append(seen, tr.Update().Progress)
	}

	assert.Equal(t, []float64{0, 12.5, 25, 37.5, 50, 62.5, 75, 87.5}, seen)
}

func TestAdvanceIsMonotonic(t *testing.T) {
	tr := NewRegistry().Create("job-1")

	tr.Advance(types.StateSummarized, "summarized")
	assert.Equal(t, 50.0, tr.Update().Progress)

	// A transition mapping to a lower checkpoint must not move progress back.
	tr.Advance(types.StateDownloaded, "late message")
	assert.Equal(t, 50.0, tr.Update().Progress)
	assert.Equal(t, "late message", tr.Update().CurrentStep)
}

func TestCompleteClosesDone(t *testing.T) {
	tr := NewRegistry().Create("job-1")
	result := &types.Result{Title: "My Video"}

	tr.Complete(result, "Completed.")

	select {
	case <-tr.Done():
	default:
		t.Fatal("done channel should be closed after Complete")
	}

	snap := tr.Snapshot()
	assert.Equal(t, types.StateCompleted, snap.State)
	assert.Equal(t, 100.0, snap.Progress)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "My Video", snap.Result.Title)
}

func TestFailCarriesMessageVerbatim(t *testing.T) {
	tr := NewRegistry().Create("job-1")

	tr.Advance(types.StateTranscribed, "transcribed")
	tr.Fail("could not generate summary: backend error: rate limited")

	select {
	case <-tr.Done():
	default:
		t.Fatal("done channel should be closed after Fail")
	}

	snap := tr.Snapshot()
	assert.Equal(t, types.StateFailed, snap.State)
	assert.Equal(t, "could not generate summary: backend error: rate limited", snap.Error)
	assert.Equal(t, snap.Error, snap.CurrentStep)
	// progress stays where the last successful stage left it
	assert.Equal(t, 37.5, snap.Progress)
}

func TestTerminalStatesAreSticky(t *testing.T) {
	tr := NewRegistry().Create("job-1")
	tr.Complete(&types.Result{}, "Completed.")

	// must not panic on a second terminal transition
	tr.Fail("late failure")
	assert.Equal(t, types.StateCompleted, tr.Snapshot().State)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("missing")
	assert.False(t, ok)

	tr := r.Create("job-1")
	got, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Same(t, tr, got)

	r.Remove("job-1")
	_, ok = r.Get("job-1")
	assert.False(t, ok)
}

func TestTrackersAreIsolatedPerJob(t *testing.T) {
	r := NewRegistry()
	a := r.Create("job-a")
	b := r.Create("job-b")

	a.Advance(types.StateSummarized, "a is halfway")
	b.Advance(types.StateDownloaded, "b just started")

	assert.Equal(t, 50.0, a.Update().Progress)
	assert.Equal(t, 12.5, b.Update().Progress)
}
