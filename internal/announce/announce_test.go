package announce

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
)

func newTestAnnouncer(t *testing.T) (*Announcer, *dom.Document) {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader(`<html><body><p>content</p></body></html>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a := New(doc, slog.New(slog.DiscardHandler))
	a.SetDelay = time.Millisecond
	a.ClearDelay = 40 * time.Millisecond
	return a, doc
}

func regionCount(doc *dom.Document) int {
	n := 0
	doc.View(func(root *html.Node) {
		var walk func(*html.Node)
		walk = func(node *html.Node) {
			if node.Type == html.ElementNode && dom.Attr(node, "id") == RegionID {
				n++
			}
			for c := node.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)
	})
	return n
}

func TestAnnounce_ClearThenSetCycle(t *testing.T) {
	a, _ := newTestAnnouncer(t)

	a.Announce("First message")
	a.Announce("First message")

	got := a.Mutations()
	want := []string{"clear", "set:First message", "clear", "set:First message"}
	if len(got) != len(want) {
		t.Fatalf("mutations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mutation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnnounce_SingleRegionReused(t *testing.T) {
	a, doc := newTestAnnouncer(t)

	a.Announce("one")
	a.Announce("two")

	if got := regionCount(doc); got != 1 {
		t.Errorf("expected exactly one live region, got %d", got)
	}
	out, err := doc.HTML()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `aria-live="assertive"`) {
		t.Errorf("region missing aria-live attribute: %s", out)
	}
	if !strings.Contains(out, `aria-atomic="true"`) {
		t.Errorf("region missing aria-atomic attribute")
	}
}

func TestAnnounce_AutoClearExpires(t *testing.T) {
	a, _ := newTestAnnouncer(t)

	a.Announce("transient")
	time.Sleep(a.ClearDelay + 30*time.Millisecond)

	got := a.Mutations()
	if len(got) == 0 || got[len(got)-1] != "clear" {
		t.Errorf("expected trailing auto-clear, got %v", got)
	}
}

func TestAnnounce_NewerMessageCancelsPendingClear(t *testing.T) {
	a, _ := newTestAnnouncer(t)

	a.ClearDelay = 60 * time.Millisecond

	a.Announce("first")
	// Second announcement lands inside the first one's clear window.
	time.Sleep(30 * time.Millisecond)
	a.Announce("second")

	// Wait past the first message's clear deadline but not the second's:
	// the stale timer must not wipe the newer message.
	time.Sleep(45 * time.Millisecond)
	got := a.Mutations()
	last := got[len(got)-1]
	if last != "set:second" {
		t.Errorf("stale auto-clear wiped a newer message: %v", got)
	}

	// After the second message's own window the region clears.
	time.Sleep(a.ClearDelay + 30*time.Millisecond)
	got = a.Mutations()
	if got[len(got)-1] != "clear" {
		t.Errorf("expected final auto-clear, got %v", got)
	}
}

func TestTranscript(t *testing.T) {
	a, _ := newTestAnnouncer(t)

	a.Announce("one")
	a.Announce("two")

	tr := a.Transcript()
	if len(tr) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(tr))
	}
	if tr[0].Text != "one" || tr[1].Text != "two" {
		t.Errorf("transcript order wrong: %+v", tr)
	}
	if tr[0].Priority != PriorityAssertive {
		t.Errorf("priority = %q", tr[0].Priority)
	}
	if tr[0].CreatedAt.IsZero() {
		t.Errorf("missing timestamp")
	}
}
