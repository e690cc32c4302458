package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhalloran/pagesense/internal/announce"
	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/pipeline"
)

// Entry is one uploaded document with its enrichment machinery. The
// runner enforces the one-active-run rule for the document; the
// announcer owns its live region.
type Entry struct {
	ID        string
	Doc       *dom.Document
	Runner    *pipeline.Runner
	Announcer *announce.Announcer

	mu        sync.Mutex
	updatedAt time.Time
}

// Touch refreshes the entry's eviction clock.
func (e *Entry) Touch() {
	e.mu.Lock()
	e.updatedAt = time.Now()
	e.mu.Unlock()
}

func (e *Entry) idle(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.updatedAt)
}

// DocStore is a thread-safe in-memory document registry with TTL
// eviction. Documents live only for the lifetime of the process.
type DocStore struct {
	mu   sync.Mutex
	docs map[string]*Entry
	ttl  time.Duration
}

func NewDocStore(ttl time.Duration) *DocStore {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &DocStore{
		docs: make(map[string]*Entry),
		ttl:  ttl,
	}
}

// Put registers a document and returns its entry.
func (s *DocStore) Put(doc *dom.Document, runner *pipeline.Runner, ann *announce.Announcer) *Entry {
	entry := &Entry{
		ID:        uuid.NewString(),
		Doc:       doc,
		Runner:    runner,
		Announcer: ann,
		updatedAt: time.Now(),
	}
	s.mu.Lock()
	s.docs[entry.ID] = entry
	s.mu.Unlock()
	return entry
}

func (s *DocStore) Get(id string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

// Cleanup removes documents idle past the TTL.
func (s *DocStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, entry := range s.docs {
		if entry.idle(now) > s.ttl {
			delete(s.docs, id)
		}
	}
}
