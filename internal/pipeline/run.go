package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhalloran/pagesense/internal/capability"
)

// Status is the state of an enrichment run.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusChecking    Status = "checking"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusAborted     Status = "aborted"
	StatusUnavailable Status = "unavailable"
)

// Counters tracks per-run item accounting.
type Counters struct {
	// Targets is how many items were handed to the capability loop.
	Targets int `json:"targets"`
	// Insufficient is how many candidates were dropped before the loop
	// for not meeting the minimum viable content length.
	Insufficient int `json:"insufficient"`
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	// Rejected counts results that failed the acceptance policy.
	Rejected int `json:"rejected"`
	// Failed counts items whose capability call errored.
	Failed int `json:"failed"`
}

// Run is the fire-and-forget handle for one pipeline run. The caller
// that started it may await Done or poll Snapshot; the run itself
// reports user-visible results through the announcement channel and
// document mutation.
type Run struct {
	mu sync.Mutex

	ID       string
	Command  Command
	DocName  string
	Status   Status
	Reason   string
	Counters Counters
	Events   []capability.ProgressEvent

	CreatedAt time.Time
	UpdatedAt time.Time

	done chan struct{}
}

func newRun(cmd Command, docName string) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Command:   cmd,
		DocName:   docName,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) finish() {
	close(r.done)
}

func (r *Run) setStatus(status Status, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.Reason = reason
	r.UpdatedAt = time.Now()
}

func (r *Run) addEvent(ev capability.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	r.UpdatedAt = time.Now()
}

func (r *Run) update(fn func(c *Counters)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.Counters)
	r.UpdatedAt = time.Now()
}

// Snapshot is a read-only, JSON-safe copy of run state.
type Snapshot struct {
	ID       string                     `json:"run_id"`
	Command  Command                    `json:"command"`
	DocName  string                     `json:"document"`
	Status   Status                     `json:"status"`
	Reason   string                     `json:"reason,omitempty"`
	Counters Counters                   `json:"counters"`
	Events   []capability.ProgressEvent `json:"events"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]capability.ProgressEvent, len(r.Events))
	copy(events, r.Events)
	return Snapshot{
		ID:       r.ID,
		Command:  r.Command,
		DocName:  r.DocName,
		Status:   r.Status,
		Reason:   r.Reason,
		Counters: r.Counters,
		Events:   events,
	}
}

// RunStore is a thread-safe in-memory run registry with TTL eviction,
// so orchestrators can poll a run after it finishes.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes runs idle past the TTL.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		run.mu.Lock()
		idle := now.Sub(run.UpdatedAt)
		run.mu.Unlock()
		if idle > s.ttl {
			delete(s.runs, id)
		}
	}
}
