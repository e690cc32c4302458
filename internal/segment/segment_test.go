package segment

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/extract"
)

func parseRoot(t *testing.T, page string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func sectionByTitle(t *testing.T, root *html.Node, title string) Section {
	t.Helper()
	for _, sec := range Sections(root) {
		if sec.Title() == title {
			return sec
		}
	}
	t.Fatalf("section %q not found", title)
	return Section{}
}

func TestSectionContent_StopsAtNextSameRankHeading(t *testing.T) {
	page := fmt.Sprintf(`<html><body>
<h2>First</h2><p>%s</p>
<h2>Second</h2><p>%s</p>
</body></html>`, strings.Repeat("a", 80), strings.Repeat("z", 80))

	root := parseRoot(t, page)
	sec := sectionByTitle(t, root, "First")
	if !strings.Contains(sec.Content, "aaaa") {
		t.Errorf("expected own paragraph in content")
	}
	if strings.Contains(sec.Content, "z") {
		t.Errorf("content leaked past the next heading: %q", sec.Content)
	}
}

func TestSectionContent_IncludesSubsections(t *testing.T) {
	page := fmt.Sprintf(`<html><body>
<h2>Chapter</h2><p>%s</p>
<h3>Detail</h3><p>%s</p>
<h2>Next</h2><p>%s</p>
</body></html>`, strings.Repeat("a", 60), strings.Repeat("b", 60), strings.Repeat("z", 60))

	root := parseRoot(t, page)
	sec := sectionByTitle(t, root, "Chapter")
	if !strings.Contains(sec.Content, "aaaa") || !strings.Contains(sec.Content, "bbbb") {
		t.Errorf("lower-rank subsection must stay inside the section: %q", sec.Content)
	}
	if strings.Contains(sec.Content, "z") {
		t.Errorf("content leaked past the next same-rank heading")
	}
}

func TestSectionContent_WrapperFallback(t *testing.T) {
	// Heading wrapped in its own div; the text lives in sibling divs of
	// the wrapper, so direct siblings yield nothing.
	page := fmt.Sprintf(`<html><body><section>
<div class="title"><h2>Wrapped</h2></div>
<div class="content"><p>%s</p></div>
<div class="more"><h2>Stop</h2><p>%s</p></div>
</section></body></html>`, strings.Repeat("a", 120), strings.Repeat("z", 120))

	root := parseRoot(t, page)
	sec := sectionByTitle(t, root, "Wrapped")
	if !strings.Contains(sec.Content, "aaaa") {
		t.Errorf("wrapper fallback missed sibling content: %q", sec.Content)
	}
	if strings.Contains(sec.Content, "z") {
		t.Errorf("wrapper fallback must stop at a sibling containing a same-rank heading")
	}
}

func TestSectionContent_ParentTextFallback(t *testing.T) {
	// No following siblings at either level; the card's own text is the
	// only signal left.
	page := fmt.Sprintf(`<html><body><main>
<div class="card"><p>%s</p><h3>Trailing heading</h3></div>
</main></body></html>`, strings.Repeat("a", 90))

	root := parseRoot(t, page)
	sec := sectionByTitle(t, root, "Trailing heading")
	if !strings.Contains(sec.Content, "aaaa") {
		t.Errorf("expected parent text fallback, got %q", sec.Content)
	}
}

func TestSectionContent_NoParentFallbackAtContentRoot(t *testing.T) {
	// Flat layout directly under body: a heading with a short section
	// must stay short instead of absorbing the whole page.
	page := fmt.Sprintf(`<html><body>
<h2>Short</h2><p>%s</p>
<h2>Long</h2><p>%s</p>
</body></html>`, strings.Repeat("a", 30), strings.Repeat("z", 300))

	root := parseRoot(t, page)
	sec := sectionByTitle(t, root, "Short")
	if len(sec.Content) >= MinViableChars {
		t.Errorf("short flat section absorbed page text: %d chars", len(sec.Content))
	}
}

func TestSectionContent_Bounded(t *testing.T) {
	page := `<html><body><h2>Big</h2><p>` + strings.Repeat("word ", 2000) + `</p></body></html>`
	root := parseRoot(t, page)
	sec := sectionByTitle(t, root, "Big")
	if len([]rune(sec.Content)) > extract.SectionTextLimit {
		t.Errorf("section content length %d exceeds limit", len([]rune(sec.Content)))
	}
}

func TestProcessedMarker(t *testing.T) {
	root := parseRoot(t, `<html><body><h2>T</h2><p>`+strings.Repeat("a", 60)+`</p></body></html>`)
	sec := sectionByTitle(t, root, "T")
	if sec.Processed() {
		t.Fatalf("fresh section must not be marked processed")
	}
	sec.MarkProcessed()
	if !sec.Processed() {
		t.Errorf("marker not visible after MarkProcessed")
	}
	if dom.Attr(sec.Heading, ProcessedAttr) != "true" {
		t.Errorf("marker attribute not set on heading")
	}
}

func TestElementContext(t *testing.T) {
	page := `<html><body>
<h2>Pricing plans</h2>
<p>Compare our plans below. <a id="target" href="/pricing">click here</a></p>
</body></html>`

	root := parseRoot(t, page)
	var link *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && dom.Attr(n, "id") == "target" {
			link = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(root)
	if link == nil {
		t.Fatalf("target link not found")
	}

	ctx := ElementContext(link)
	if !strings.Contains(ctx, "Pricing plans") {
		t.Errorf("context missing nearest heading: %q", ctx)
	}
	if !strings.Contains(ctx, "Compare our plans") {
		t.Errorf("context missing parent text: %q", ctx)
	}
}
