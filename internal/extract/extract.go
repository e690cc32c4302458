// Package extract pulls bounded plain text out of a document for use
// as generation input.
package extract

import (
	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
)

// Length bounds applied before any text reaches the generation
// capability.
const (
	DocumentTextLimit = 5000
	SectionTextLimit  = 3000
	ContextTextLimit  = 200
)

// DocumentSummaryText returns the visible text of the page's primary
// content region (main landmark, else article, else body), truncated
// to DocumentTextLimit and trimmed. Pure; no side effects.
func DocumentSummaryText(root *html.Node) string {
	region := dom.ContentRegion(root)
	return dom.Truncate(dom.Text(region), DocumentTextLimit)
}
