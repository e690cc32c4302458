// Package pipeline drives the generation capability over a list of
// enrichment targets: strictly sequential, paced between items, with
// per-item failure isolation and marker-based idempotency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/announce"
	"github.com/dhalloran/pagesense/internal/capability"
	"github.com/dhalloran/pagesense/internal/dom"
)

// Command selects what a run enriches.
type Command string

const (
	CommandOverview         Command = "generate-overview"
	CommandSectionSummaries Command = "generate-section-summaries"
	CommandFixLabels        Command = "fix-ambiguous-labels"
)

// ParseCommand validates a wire-level command string.
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CommandOverview, CommandSectionSummaries, CommandFixLabels:
		return Command(s), nil
	}
	return "", fmt.Errorf("unknown command: %q", s)
}

// Run-level failures. Item-level failures are logged and skipped, never
// surfaced as errors.
var (
	// ErrRunActive means a run was requested while one is in flight on
	// the same document. Policy: reject, never queue or race sessions.
	ErrRunActive = errors.New("a run is already active on this document")

	ErrNoTargets       = errors.New("no enrichment targets found")
	ErrContentTooShort = errors.New("document content too short")
)

// Options configures pacing and acceptance.
type Options struct {
	// LabelDelay paces label-repair capability calls.
	LabelDelay time.Duration
	// SummaryDelay is the base pacing for summarization calls;
	// SummaryJitter adds up to that much on top of it.
	SummaryDelay  time.Duration
	SummaryJitter time.Duration

	// MinSectionChars is the minimum viable section content length.
	MinSectionChars int
	// MinDocumentChars is the minimum page text for an overview.
	MinDocumentChars int
	// MaxLabelWords bounds accepted labels.
	MaxLabelWords int

	// Progress announcements every N items.
	SummaryProgressEvery int
	LabelProgressEvery   int
}

func DefaultOptions() Options {
	return Options{
		LabelDelay:           600 * time.Millisecond,
		SummaryDelay:         800 * time.Millisecond,
		SummaryJitter:        200 * time.Millisecond,
		MinSectionChars:      50,
		MinDocumentChars:     200,
		MaxLabelWords:        8,
		SummaryProgressEvery: 5,
		LabelProgressEvery:   10,
	}
}

// Runner executes enrichment runs against one document. At most one
// run is active at a time; the capability session created for a run is
// owned by that run alone and released exactly once on every exit
// path.
type Runner struct {
	cap  capability.Client
	doc  *dom.Document
	ann  *announce.Announcer
	log  *slog.Logger
	opts Options

	mu     sync.Mutex
	active bool
}

func NewRunner(cap capability.Client, doc *dom.Document, ann *announce.Announcer, log *slog.Logger, opts Options) *Runner {
	if opts.LabelDelay <= 0 || opts.SummaryDelay <= 0 {
		def := DefaultOptions()
		if opts.LabelDelay <= 0 {
			opts.LabelDelay = def.LabelDelay
		}
		if opts.SummaryDelay <= 0 {
			opts.SummaryDelay = def.SummaryDelay
		}
	}
	if opts.MinSectionChars <= 0 {
		opts.MinSectionChars = 50
	}
	if opts.MinDocumentChars <= 0 {
		opts.MinDocumentChars = 200
	}
	if opts.MaxLabelWords <= 0 {
		opts.MaxLabelWords = 8
	}
	if opts.SummaryProgressEvery <= 0 {
		opts.SummaryProgressEvery = 5
	}
	if opts.LabelProgressEvery <= 0 {
		opts.LabelProgressEvery = 10
	}
	return &Runner{cap: cap, doc: doc, ann: ann, log: log, opts: opts}
}

// Document returns the document this runner enriches.
func (r *Runner) Document() *dom.Document { return r.doc }

// Announcer returns the document's announcement channel.
func (r *Runner) Announcer() *announce.Announcer { return r.ann }

// Start begins a run and returns its handle immediately; the work
// happens asynchronously and reports through the announcement channel
// and document mutation. Returns ErrRunActive if a run is in flight.
func (r *Runner) Start(ctx context.Context, cmd Command) (*Run, error) {
	if _, err := ParseCommand(string(cmd)); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil, ErrRunActive
	}
	r.active = true
	r.mu.Unlock()

	run := newRun(cmd, r.doc.Name())
	go func() {
		defer func() {
			r.mu.Lock()
			r.active = false
			r.mu.Unlock()
			run.finish()
		}()
		r.execute(ctx, run)
	}()
	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *Run) {
	log := r.log.With("run_id", run.ID, "command", run.Command)

	run.setStatus(StatusChecking, "")
	switch r.cap.Availability(ctx) {
	case capability.Unavailable:
		log.Error("capability unavailable")
		r.ann.Announce("Content assistance is not available right now.")
		run.setStatus(StatusUnavailable, capability.ErrUnavailable.Error())
		return
	case capability.AwaitingDownload:
		r.ann.Announce("Preparing content assistance. The first request may take a while to download the model.")
	}

	items, err := r.collectTargets(run)
	if err != nil {
		log.Warn("run aborted before any capability call", "error", err)
		r.ann.Announce(abortMessage(run.Command, err))
		run.setStatus(StatusAborted, err.Error())
		return
	}
	run.update(func(c *Counters) { c.Targets = len(items) })

	session, err := r.cap.NewSession(ctx, capability.SessionOptions{
		TaskPrompt: taskPrompt(run.Command),
		OnProgress: run.addEvent,
	})
	if err != nil {
		log.Error("session creation failed", "error", err)
		r.ann.Announce("Content assistance failed to start.")
		run.setStatus(StatusAborted, fmt.Sprintf("create session: %s", err))
		return
	}
	defer session.Release()

	run.setStatus(StatusRunning, "")
	log.Info("run started", "targets", len(items))

	every := r.progressEvery(run.Command)
	for i, it := range items {
		// Pacing happens before each capability call: the backend is a
		// shared, single-concurrency resource.
		if err := r.pace(ctx, run.Command); err != nil {
			run.setStatus(StatusAborted, err.Error())
			return
		}

		out, err := session.Run(ctx, it.prompt)
		run.update(func(c *Counters) { c.Attempted++ })
		if err != nil {
			// One item's failure never aborts the run.
			log.Error("item generation failed", "item", it.index, "error", err)
			run.update(func(c *Counters) { c.Failed++ })
			continue
		}

		accepted, ok := it.accept(out)
		if !ok {
			log.Debug("result rejected", "item", it.index)
			run.update(func(c *Counters) { c.Rejected++ })
			continue
		}

		// The document write lands before the next item's capability
		// call begins.
		r.doc.Update(func(_ *html.Node) { it.apply(accepted) })
		run.update(func(c *Counters) { c.Succeeded++ })

		if done := i + 1; done < len(items) && done%every == 0 {
			run.addEvent(capability.ProgressEvent{
				Phase:   "enrich",
				Percent: done * 100 / len(items),
			})
			r.ann.Announce(progressMessage(run.Command, done, len(items)))
		}
	}

	run.setStatus(StatusCompleted, "")
	snap := run.Snapshot()
	log.Info("run completed",
		"succeeded", snap.Counters.Succeeded,
		"rejected", snap.Counters.Rejected,
		"failed", snap.Counters.Failed,
	)
	r.ann.Announce(completionMessage(run.Command, snap.Counters))
}

func (r *Runner) pace(ctx context.Context, cmd Command) error {
	d := r.opts.LabelDelay
	if cmd != CommandFixLabels {
		d = r.opts.SummaryDelay
		if r.opts.SummaryJitter > 0 {
			d += time.Duration(rand.Int64N(int64(r.opts.SummaryJitter) + 1))
		}
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) progressEvery(cmd Command) int {
	if cmd == CommandFixLabels {
		return r.opts.LabelProgressEvery
	}
	return r.opts.SummaryProgressEvery
}

func abortMessage(cmd Command, err error) string {
	switch {
	case errors.Is(err, ErrContentTooShort):
		return "This page does not have enough content to summarize."
	case errors.Is(err, ErrNoTargets):
		if cmd == CommandFixLabels {
			return "No unclear links or buttons were found on this page."
		}
		return "No sections needing a summary were found on this page."
	default:
		return "Content assistance could not process this page."
	}
}

func progressMessage(cmd Command, done, total int) string {
	if cmd == CommandFixLabels {
		return fmt.Sprintf("Progress: %d of %d labels repaired.", done, total)
	}
	return fmt.Sprintf("Progress: %d of %d sections summarized.", done, total)
}

func completionMessage(cmd Command, c Counters) string {
	switch cmd {
	case CommandOverview:
		if c.Succeeded > 0 {
			return "Page overview added at the top of the page."
		}
		return "Could not generate a page overview."
	case CommandFixLabels:
		return fmt.Sprintf("Label repair finished: %d of %d controls labeled.", c.Succeeded, c.Targets)
	default:
		return fmt.Sprintf("Section summaries finished: %d of %d sections summarized.", c.Succeeded, c.Targets)
	}
}
