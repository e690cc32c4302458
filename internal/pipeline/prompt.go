package pipeline

import (
	"fmt"
	"strings"

	"github.com/dhalloran/pagesense/internal/selector"
)

// Task prompts prime one capability session for its whole run.

const summaryTaskPrompt = `You write concise, neutral summaries of web page content for screen reader users. Summaries must be plain text: no markdown, no headings, no lists. Never mention that you are summarizing.`

const labelTaskPrompt = `You write short descriptive labels for links and buttons so screen reader users know where they lead. Reply with ONLY the label text: no quotes, no punctuation at the end, at most 8 words.`

func taskPrompt(cmd Command) string {
	if cmd == CommandFixLabels {
		return labelTaskPrompt
	}
	return summaryTaskPrompt
}

func overviewPrompt(pageText string) string {
	var sb strings.Builder
	sb.WriteString("Summarize this page in 2-3 sentences for someone deciding whether to read it.\n\n")
	sb.WriteString(pageText)
	return sb.String()
}

func sectionPrompt(title, content string) string {
	var sb strings.Builder
	sb.WriteString("Summarize this section in one sentence (max 25 words).\n\n")
	if title != "" {
		fmt.Fprintf(&sb, "Section: %q\n---\n", title)
	}
	sb.WriteString(content)
	return sb.String()
}

func labelPrompt(t selector.Target) string {
	var sb strings.Builder
	sb.WriteString("Write a descriptive label for this control.\n")
	fmt.Fprintf(&sb, "Visible text: %q\n", t.VisibleText)
	if t.DestinationHint != "" {
		fmt.Fprintf(&sb, "Destination: %s\n", t.DestinationHint)
	}
	if t.Context != "" {
		fmt.Fprintf(&sb, "Surrounding context: %s\n", t.Context)
	}
	return sb.String()
}
