package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parseRoot(t *testing.T, page string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func TestDocumentSummaryText_PrefersMain(t *testing.T) {
	page := `<html><body>
<nav>Site navigation</nav>
<main><p>Primary article text.</p></main>
<footer>footer junk</footer>
</body></html>`

	got := DocumentSummaryText(parseRoot(t, page))
	if got != "Primary article text." {
		t.Errorf("got %q", got)
	}
}

func TestDocumentSummaryText_Bounded(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	page := `<html><body><main><p>` + long + `</p></main></body></html>`

	got := DocumentSummaryText(parseRoot(t, page))
	if len([]rune(got)) > DocumentTextLimit {
		t.Errorf("summary text length %d exceeds limit %d", len([]rune(got)), DocumentTextLimit)
	}
	if !strings.HasPrefix(got, "word word") {
		t.Errorf("unexpected prefix %q", got[:20])
	}
}
