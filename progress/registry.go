package progress

import (
	"sync"

	"blogarize/types"
)

// Update is one progress emission on the wire.
type Update struct {
	Progress    float64 `json:"progress"`
	CurrentStep string  `json:"current_step"`
}

// Snapshot is the full job view served by the job endpoint.
type Snapshot struct {
	State       types.State   `json:"state"`
	Progress    float64       `json:"progress"`
	CurrentStep string        `json:"current_step"`
	Result      *types.Result `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Tracker carries the live progress of one job. Each job owns its tracker,
// so concurrent jobs cannot corrupt each other's reported progress.
type Tracker struct {
	mu       sync.Mutex
	state    types.State
	progress float64
	step     string
	result   *types.Result
	errMsg   string
	done     chan struct{}
}

func newTracker() *Tracker {
	return &Tracker{
		state: types.StateInit,
		step:  "Press submit to get started.",
		done:  make(chan struct{}),
	}
}

// Advance moves the tracker to a checkpoint state with a human-readable
// status message. Progress is monotonically non-decreasing within a run: a
// transition mapping to a lower percentage keeps the higher value.
func (t *Tracker) Advance(state types.State, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.step = step
	if pct, ok := types.Checkpoints[state]; ok && pct > t.progress {
		t.progress = pct
	}
}

// Fail terminates the run with the failing stage's message, surfaced to
// subscribers verbatim.
func (t *Tracker) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == types.StateFailed || t.state == types.StateCompleted {
		return
	}
	t.state = types.StateFailed
	t.step = msg
	t.errMsg = msg
	close(t.done)
}

// Complete terminates the run with its result at the 100% checkpoint.
func (t *Tracker) Complete(result *types.Result, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == types.StateFailed || t.state == types.StateCompleted {
		return
	}
	t.state = types.StateCompleted
	t.progress = types.Checkpoints[types.StateCompleted]
	t.step = step
	t.result = result
	close(t.done)
}

// Done is closed when the job reaches Completed or Failed; the reporter uses
// it to end subscriptions with the job's lifetime.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Update returns the current wire-level progress pair.
func (t *Tracker) Update() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Update{Progress: t.progress, CurrentStep: t.step}
}

// Snapshot returns the full job view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:       t.state,
		Progress:    t.progress,
		CurrentStep: t.step,
		Result:      t.result,
		Error:       t.errMsg,
	}
}

// Registry is the keyed lookup from job ID to tracker.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Tracker
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Tracker)}
}

// Create registers a fresh tracker for a job ID.
func (r *Registry) Create(jobID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := newTracker()
	r.jobs[jobID] = t
	return t
}

// Get looks up the tracker for a job ID.
func (r *Registry) Get(jobID string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.jobs[jobID]
	return t, ok
}

// Remove drops a tracker once its job's results are no longer interesting.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}
