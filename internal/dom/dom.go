// Package dom wraps a parsed HTML tree and provides the node-level
// helpers the enrichment pipeline needs: visible-text extraction,
// heading lookup, attribute access, and in-place mutation.
package dom

import (
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document is a mutable HTML tree. Mutations and rendering are
// serialized through an internal mutex so a render (e.g. an API
// download) cannot observe a half-applied enrichment write.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	name string
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// Name returns the document's source name (filename or upload name).
func (d *Document) Name() string { return d.name }

// SetName records the document's source name.
func (d *Document) SetName(name string) { d.name = name }

// Update runs fn against the document root while holding the document
// lock. All tree mutations must go through Update.
func (d *Document) Update(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// View runs fn against the document root while holding the document
// lock. Node pointers obtained inside fn stay valid afterwards; only
// access through Update/View is synchronized.
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Render serializes the document to w.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// HTML returns the serialized document.
func (d *Document) HTML() (string, error) {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Title returns the contents of the <title> element, if any.
func (d *Document) Title() string {
	var title string
	d.View(func(root *html.Node) {
		if n := FindFirst(root, "title"); n != nil {
			title = Text(n)
		}
	})
	return title
}

// nonContent elements carry no reader-visible text.
var nonContent = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"meta":     true,
	"link":     true,
	"iframe":   true,
	"svg":      true,
}

// chrome elements are page furniture excluded from section content.
var chrome = map[string]bool{
	"nav":    true,
	"aside":  true,
	"header": true,
	"footer": true,
}

// IsNonContent reports whether n is an element that never contributes
// visible text (script, style, meta and friends).
func IsNonContent(n *html.Node) bool {
	return n.Type == html.ElementNode && nonContent[n.Data]
}

// IsChrome reports whether n is navigation or similar page furniture.
func IsChrome(n *html.Node) bool {
	return n.Type == html.ElementNode && chrome[n.Data]
}

// Text returns the visible text of n with whitespace collapsed,
// skipping non-content and chrome subtrees.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if IsNonContent(n) || IsChrome(n) {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return CollapseSpace(sb.String())
}

// HeadingRank returns 1-6 for h1-h6 elements, 0 otherwise.
func HeadingRank(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	switch n.Data {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// Headings returns all heading elements under root in document order.
func Headings(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if HeadingRank(n) > 0 {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// FindFirst returns the first element named tag under root in
// document order, or nil.
func FindFirst(root *html.Node, tag string) *html.Node {
	if root.Type == html.ElementNode && root.Data == tag {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// Body returns the document's <body> element, or root if none exists
// (fragments).
func Body(root *html.Node) *html.Node {
	if b := FindFirst(root, "body"); b != nil {
		return b
	}
	return root
}

// ContentRegion returns the primary content region: the main landmark,
// else the first article, else the body.
func ContentRegion(root *html.Node) *html.Node {
	if n := FindFirst(root, "main"); n != nil {
		return n
	}
	if n := findByRole(root, "main"); n != nil {
		return n
	}
	if n := FindFirst(root, "article"); n != nil {
		return n
	}
	return Body(root)
}

func findByRole(root *html.Node, role string) *html.Node {
	if root.Type == html.ElementNode && Attr(root, "role") == role {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findByRole(c, role); found != nil {
			return found
		}
	}
	return nil
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Element builds a detached element node with the given attributes.
func Element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type: html.ElementNode,
		Data: tag,
		Attr: attrs,
	}
}

// TextNode builds a detached text node.
func TextNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// InsertAfter inserts newNode as the sibling immediately following n.
func InsertAfter(n, newNode *html.Node) {
	if n.Parent == nil {
		return
	}
	n.Parent.InsertBefore(newNode, n.NextSibling)
}

// InsertFirst inserts newNode as the first child of parent.
func InsertFirst(parent, newNode *html.Node) {
	parent.InsertBefore(newNode, parent.FirstChild)
}

// CollapseSpace trims s and collapses runs of whitespace to single
// spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate bounds s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
