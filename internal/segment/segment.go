// Package segment computes section boundaries: which body text belongs
// to which heading. Heading markup is inconsistent across documents,
// so content lookup degrades through three tiers rather than returning
// empty text.
package segment

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/extract"
)

const (
	// MinViableChars is the shortest section content worth enriching.
	MinViableChars = 50

	// maxContextAscent bounds the ancestor climb in ElementContext.
	maxContextAscent = 5

	// ProcessedAttr marks a heading whose section has already been
	// enriched. Document-lifetime only.
	ProcessedAttr = "data-pagesense-processed"
)

// Section is a heading plus the body text judged to belong to it.
type Section struct {
	Heading *html.Node
	Level   int
	Content string
}

// Processed reports whether this section was already enriched.
func (s Section) Processed() bool {
	return dom.Attr(s.Heading, ProcessedAttr) == "true"
}

// MarkProcessed records that this section has been enriched.
func (s Section) MarkProcessed() {
	dom.SetAttr(s.Heading, ProcessedAttr, "true")
}

// Title returns the heading's visible text.
func (s Section) Title() string {
	return dom.Text(s.Heading)
}

// Sections enumerates all headings under root in document order, each
// with its computed section content.
func Sections(root *html.Node) []Section {
	var out []Section
	for _, h := range dom.Headings(root) {
		out = append(out, Section{
			Heading: h,
			Level:   dom.HeadingRank(h),
			Content: SectionContent(h),
		})
	}
	return out
}

// SectionContent returns the best-effort body text owned by heading,
// bounded to the section text limit.
//
// Tier 1 walks the heading's following siblings, stopping at the first
// sibling that is itself a heading of same-or-higher rank. Tier 2 does
// the same over the parent's following siblings, using any heading
// nested in each candidate. Tier 3 falls back to the parent's full
// text, but never when the parent is the content root itself; that
// would hand every heading the whole page.
func SectionContent(heading *html.Node) string {
	rank := dom.HeadingRank(heading)
	if rank == 0 {
		return ""
	}

	content := collectSiblings(heading, rank, directRank)
	if len(content) >= MinViableChars {
		return dom.Truncate(content, extract.SectionTextLimit)
	}

	parent := heading.Parent
	if parent == nil {
		return dom.Truncate(content, extract.SectionTextLimit)
	}

	fallback := collectSiblings(parent, rank, nestedRank)
	if len(fallback) > len(content) {
		content = fallback
	}
	if len(content) >= MinViableChars {
		return dom.Truncate(content, extract.SectionTextLimit)
	}

	if !isContentRoot(parent) {
		if t := dom.Text(parent); len(t) > len(content) {
			content = t
		}
	}
	return dom.Truncate(content, extract.SectionTextLimit)
}

// directRank treats only sibling nodes that are themselves headings as
// section boundaries.
func directRank(n *html.Node) int {
	return dom.HeadingRank(n)
}

// nestedRank looks for a heading anywhere inside the candidate sibling.
func nestedRank(n *html.Node) int {
	if r := dom.HeadingRank(n); r > 0 {
		return r
	}
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if found := dom.FindFirst(n, tag); found != nil {
			return dom.HeadingRank(found)
		}
	}
	return 0
}

// collectSiblings accumulates visible text from start's following
// siblings, stopping at the first sibling whose rank (per rankOf) is
// same-or-higher than rank, or once enough text has been gathered.
func collectSiblings(start *html.Node, rank int, rankOf func(*html.Node) int) string {
	var parts []string
	total := 0
	for s := start.NextSibling; s != nil; s = s.NextSibling {
		if r := rankOf(s); r > 0 && r <= rank {
			break
		}
		if dom.IsNonContent(s) || dom.IsChrome(s) {
			continue
		}
		t := dom.Text(s)
		if t == "" {
			continue
		}
		parts = append(parts, t)
		total += len(t)
		if total > extract.SectionTextLimit {
			break
		}
	}
	return strings.Join(parts, "\n\n")
}

func isContentRoot(n *html.Node) bool {
	if n.Type == html.DocumentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "body", "html", "main", "article":
		return true
	}
	return dom.Attr(n, "role") == "main"
}

// ElementContext returns topical grounding for a node: the nearest
// heading found within up to five ancestor levels, joined with up to
// 200 characters of the immediate parent's text.
func ElementContext(n *html.Node) string {
	var headingText string
	ancestor := n.Parent
	for range maxContextAscent {
		if ancestor == nil {
			break
		}
		if h := nearestHeading(ancestor); h != nil {
			headingText = dom.Text(h)
			break
		}
		ancestor = ancestor.Parent
	}

	var parentText string
	if n.Parent != nil {
		parentText = dom.Truncate(dom.Text(n.Parent), extract.ContextTextLimit)
	}

	switch {
	case headingText != "" && parentText != "":
		return headingText + ": " + parentText
	case headingText != "":
		return headingText
	default:
		return parentText
	}
}

func nearestHeading(n *html.Node) *html.Node {
	if dom.HeadingRank(n) > 0 {
		return n
	}
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if found := dom.FindFirst(n, tag); found != nil {
			return found
		}
	}
	return nil
}
