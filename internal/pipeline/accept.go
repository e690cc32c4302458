package pipeline

import "strings"

// Acceptance policy for generated results. Rejection is a no-op for
// the item, never an error.

// AcceptSummary accepts any non-empty text after trimming.
func AcceptSummary(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// AcceptLabel strips wrapping quotes and trailing punctuation, then
// accepts the result iff it is non-empty and at most maxWords words.
// Models pad short-label requests with prose often enough that the
// bound is what keeps junk out of accessible names.
func AcceptLabel(s string, maxWords int) (string, bool) {
	s = strings.TrimSpace(s)
	s = stripWrappingQuotes(s)
	s = strings.TrimRight(s, ".,!?;:")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(strings.Fields(s)) > maxWords {
		return "", false
	}
	return s, true
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"‘", "’"},
}

func stripWrappingQuotes(s string) string {
	for _, pair := range quotePairs {
		if len(s) > len(pair[0])+len(pair[1]) &&
			strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
