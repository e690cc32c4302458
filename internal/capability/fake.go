package capability

import (
	"context"
	"sync"
	"time"
)

// Fake is a scripted in-process backend. It serves two purposes: local
// development without an API key (backend "fake" in config), and
// deterministic pipeline tests that need to observe call timing and
// session lifecycle.
type Fake struct {
	mu sync.Mutex

	// Avail is what Availability reports. Defaults to Available.
	Avail Availability

	// Reply produces the generated text for an input. Defaults to a
	// short canned summary.
	Reply func(input string) (string, error)

	// CreateErr, if set, makes NewSession fail.
	CreateErr error

	// DownloadEvents are emitted through OnProgress when a session is
	// created, simulating a lazy model download.
	DownloadEvents []ProgressEvent

	calls    []FakeCall
	sessions int
	released int
}

// FakeCall records one generation call.
type FakeCall struct {
	Input string
	At    time.Time
}

func NewFake() *Fake {
	return &Fake{Avail: Available}
}

func (f *Fake) Availability(ctx context.Context) Availability {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Avail == "" {
		return Available
	}
	return f.Avail
}

func (f *Fake) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	f.mu.Lock()
	if f.CreateErr != nil {
		err := f.CreateErr
		f.mu.Unlock()
		return nil, err
	}
	f.sessions++
	events := f.DownloadEvents
	f.mu.Unlock()

	if opts.OnProgress != nil {
		for _, ev := range events {
			opts.OnProgress(ev)
		}
	}
	return &fakeSession{fake: f, task: opts.TaskPrompt}, nil
}

type fakeSession struct {
	fake *Fake
	task string
}

func (s *fakeSession) Run(ctx context.Context, input string) (string, error) {
	s.fake.mu.Lock()
	s.fake.calls = append(s.fake.calls, FakeCall{Input: input, At: time.Now()})
	reply := s.fake.Reply
	s.fake.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reply != nil {
		return reply(input)
	}
	return "A short generated summary of the provided text.", nil
}

func (s *fakeSession) Release() {
	s.fake.mu.Lock()
	s.fake.released++
	s.fake.mu.Unlock()
}

// Calls returns a copy of all recorded generation calls.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Sessions returns how many sessions were created.
func (f *Fake) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// Released returns how many Release calls were made.
func (f *Fake) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
