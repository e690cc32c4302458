// Package announce delivers text to assistive technology through a
// single live region embedded in the document.
package announce

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
)

const (
	// RegionID identifies the process-wide live region element.
	RegionID = "pagesense-live-region"

	// PriorityAssertive interrupts the screen reader's current speech.
	PriorityAssertive = "assertive"

	defaultSetDelay   = 100 * time.Millisecond
	defaultClearDelay = 10 * time.Second

	maxTranscript = 200
)

// hiddenStyle keeps the region out of the visual layout while leaving
// it exposed to the accessibility tree.
const hiddenStyle = "position:absolute;width:1px;height:1px;overflow:hidden;clip:rect(0 0 0 0);white-space:nowrap"

// Announcement is one message delivered to assistive technology.
type Announcement struct {
	Text      string    `json:"text"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Announcer owns the document's live region. The region is created
// lazily on first use and reused for the lifetime of the document.
type Announcer struct {
	doc *dom.Document
	log *slog.Logger

	// SetDelay separates the clearing mutation from the set mutation;
	// without it live regions often do not re-announce repeated text.
	SetDelay time.Duration

	// ClearDelay is how long a message stays in the region before it
	// auto-expires.
	ClearDelay time.Duration

	mu         sync.Mutex
	region     *html.Node
	gen        int
	transcript []Announcement
	mutations  []string
}

func New(doc *dom.Document, log *slog.Logger) *Announcer {
	return &Announcer{
		doc:        doc,
		log:        log,
		SetDelay:   defaultSetDelay,
		ClearDelay: defaultClearDelay,
	}
}

// Announce delivers text assertively. Every call produces a distinct
// clear -> delay -> set cycle, so announcing the same text twice is
// read twice. The trailing auto-clear is scheduled and cancelled by
// any newer announcement.
func (a *Announcer) Announce(text string) {
	a.mu.Lock()
	a.ensureRegionLocked()
	a.setRegionTextLocked("")
	a.mu.Unlock()

	time.Sleep(a.SetDelay)

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.setRegionTextLocked(text)
	a.transcript = append(a.transcript, Announcement{
		Text:      text,
		Priority:  PriorityAssertive,
		CreatedAt: time.Now(),
	})
	if len(a.transcript) > maxTranscript {
		a.transcript = a.transcript[len(a.transcript)-maxTranscript:]
	}
	a.mu.Unlock()

	a.log.Debug("announced", "text", text)

	time.AfterFunc(a.ClearDelay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.gen != gen {
			return
		}
		a.setRegionTextLocked("")
	})
}

// ensureRegionLocked creates the live region on first use and attaches
// it to the document body.
func (a *Announcer) ensureRegionLocked() {
	if a.region != nil {
		return
	}
	region := dom.Element("div",
		html.Attribute{Key: "id", Val: RegionID},
		html.Attribute{Key: "aria-live", Val: PriorityAssertive},
		html.Attribute{Key: "aria-atomic", Val: "true"},
		html.Attribute{Key: "style", Val: hiddenStyle},
	)
	a.doc.Update(func(root *html.Node) {
		dom.Body(root).AppendChild(region)
	})
	a.region = region
}

// setRegionTextLocked replaces the region's children with a single
// text node (or nothing, for a clear).
func (a *Announcer) setRegionTextLocked(text string) {
	region := a.region
	a.doc.Update(func(root *html.Node) {
		for c := region.FirstChild; c != nil; {
			next := c.NextSibling
			region.RemoveChild(c)
			c = next
		}
		if text != "" {
			region.AppendChild(dom.TextNode(text))
		}
	})
	if text == "" {
		a.mutations = append(a.mutations, "clear")
	} else {
		a.mutations = append(a.mutations, "set:"+text)
	}
}

// Transcript returns a copy of the delivered announcements, oldest
// first.
func (a *Announcer) Transcript() []Announcement {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Announcement, len(a.transcript))
	copy(out, a.transcript)
	return out
}

// Mutations returns the ordered region mutation log ("clear",
// "set:<text>"). Diagnostic surface; the sequencing contract is easier
// to verify here than by racing the region's children.
func (a *Announcer) Mutations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.mutations))
	copy(out, a.mutations)
	return out
}
