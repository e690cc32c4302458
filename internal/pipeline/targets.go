package pipeline

import (
	"golang.org/x/net/html"

	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/extract"
	"github.com/dhalloran/pagesense/internal/segment"
	"github.com/dhalloran/pagesense/internal/selector"
)

// OverviewAttr marks a document that already has a page overview
// block. Document-lifetime only, like the section and label markers.
const OverviewAttr = "data-pagesense-overview"

// item is one unit of pipeline work: a prompt, the acceptance policy
// for its result, and the document write to perform on acceptance.
// Items exist only for the duration of one run and are processed in
// document order of their underlying nodes.
type item struct {
	index  int
	prompt string
	accept func(string) (string, bool)
	apply  func(text string)
}

// collectTargets builds the run's items. Precondition failures
// (nothing to do, content too short) abort the run before any
// capability call.
func (r *Runner) collectTargets(run *Run) ([]item, error) {
	var items []item
	var err error
	r.doc.View(func(root *html.Node) {
		switch run.Command {
		case CommandOverview:
			items, err = r.overviewItems(root)
		case CommandSectionSummaries:
			items, err = r.sectionItems(root, run)
		case CommandFixLabels:
			items, err = r.labelItems(root)
		}
	})
	return items, err
}

func (r *Runner) overviewItems(root *html.Node) ([]item, error) {
	body := dom.Body(root)
	if dom.Attr(body, OverviewAttr) == "true" {
		return nil, ErrNoTargets
	}
	text := extract.DocumentSummaryText(root)
	if len(text) < r.opts.MinDocumentChars {
		return nil, ErrContentTooShort
	}
	return []item{{
		index:  0,
		prompt: overviewPrompt(text),
		accept: AcceptSummary,
		apply: func(summary string) {
			insertOverviewBlock(body, summary)
			dom.SetAttr(body, OverviewAttr, "true")
		},
	}}, nil
}

func (r *Runner) sectionItems(root *html.Node, run *Run) ([]item, error) {
	var items []item
	for _, sec := range segment.Sections(root) {
		if sec.Processed() {
			continue
		}
		if len(sec.Content) < r.opts.MinSectionChars {
			r.log.Debug("section skipped: insufficient content",
				"heading", sec.Title(), "chars", len(sec.Content))
			run.update(func(c *Counters) { c.Insufficient++ })
			continue
		}
		sec := sec
		items = append(items, item{
			index:  len(items),
			prompt: sectionPrompt(sec.Title(), sec.Content),
			accept: AcceptSummary,
			apply: func(summary string) {
				insertSectionNote(sec.Heading, summary)
				dom.SetAttr(sec.Heading, "aria-description", summary)
				sec.MarkProcessed()
			},
		})
	}
	if len(items) == 0 {
		return nil, ErrNoTargets
	}
	return items, nil
}

func (r *Runner) labelItems(root *html.Node) ([]item, error) {
	var items []item
	for _, t := range selector.AmbiguousControls(root) {
		if t.Fixed() {
			continue
		}
		t := t
		items = append(items, item{
			index:  len(items),
			prompt: labelPrompt(t),
			accept: func(s string) (string, bool) {
				return AcceptLabel(s, r.opts.MaxLabelWords)
			},
			apply: func(label string) {
				dom.SetAttr(t.Node, "aria-label", label)
				t.MarkFixed()
			},
		})
	}
	if len(items) == 0 {
		return nil, ErrNoTargets
	}
	return items, nil
}

// insertOverviewBlock places a standalone visible summary block at the
// top of the document body.
func insertOverviewBlock(body *html.Node, summary string) {
	block := dom.Element("section",
		html.Attribute{Key: "class", Val: "pagesense-overview"},
		html.Attribute{Key: "role", Val: "note"},
		html.Attribute{Key: "aria-label", Val: "Page overview"},
	)
	heading := dom.Element("h2")
	heading.AppendChild(dom.TextNode("Page overview"))
	// The generated block must never become a summarization target
	// itself.
	dom.SetAttr(heading, segment.ProcessedAttr, "true")
	para := dom.Element("p")
	para.AppendChild(dom.TextNode(summary))
	block.AppendChild(heading)
	block.AppendChild(para)
	dom.InsertFirst(body, block)
}

// insertSectionNote places a visible note element immediately after
// the section's heading.
func insertSectionNote(heading *html.Node, summary string) {
	note := dom.Element("div",
		html.Attribute{Key: "class", Val: "pagesense-note"},
		html.Attribute{Key: "role", Val: "note"},
	)
	note.AppendChild(dom.TextNode("Summary: " + summary))
	dom.InsertAfter(heading, note)
}
