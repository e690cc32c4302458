// Package selector identifies interactive controls whose accessible
// name is missing or too vague to be read usefully by a screen reader.
package selector

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/segment"
)

// FixedAttr marks a control whose label has already been repaired.
// Document-lifetime only.
const FixedAttr = "data-pagesense-fixed"

// ambiguousPhrases are link/button texts that say nothing about the
// destination or action.
var ambiguousPhrases = map[string]bool{
	"click here": true,
	"here":       true,
	"learn more": true,
	"read more":  true,
	"more":       true,
	"continue":   true,
	"next":       true,
	"go":         true,
	"view":       true,
	"see":        true,
}

// Target is a control selected for label repair.
type Target struct {
	Node            *html.Node
	VisibleText     string
	DestinationHint string
	Context         string
}

// Fixed reports whether this control was already repaired.
func (t Target) Fixed() bool {
	return dom.Attr(t.Node, FixedAttr) == "true"
}

// MarkFixed records that this control's label has been repaired.
func (t Target) MarkFixed() {
	dom.SetAttr(t.Node, FixedAttr, "true")
}

// AmbiguousControls scans all links and buttons under root and returns
// the ones needing repair, in document order. A control with a
// non-empty accessible-name override is never selected regardless of
// its visible text.
func AmbiguousControls(root *html.Node) []Target {
	var out []Target
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if dom.IsNonContent(n) {
			return
		}
		if isControl(n) && needsRepair(n) {
			out = append(out, Target{
				Node:            n,
				VisibleText:     dom.Text(n),
				DestinationHint: dom.Attr(n, "href"),
				Context:         segment.ElementContext(n),
			})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func isControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "a", "button":
		return true
	}
	return dom.Attr(n, "role") == "button"
}

func needsRepair(n *html.Node) bool {
	if hasNameOverride(n) {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(dom.Text(n)))
	if text == "" {
		return true
	}
	if len([]rune(text)) < 3 {
		return true
	}
	return ambiguousPhrases[text]
}

func hasNameOverride(n *html.Node) bool {
	for _, key := range []string{"aria-label", "aria-labelledby", "title"} {
		if strings.TrimSpace(dom.Attr(n, key)) != "" {
			return true
		}
	}
	return false
}
