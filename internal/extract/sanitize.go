package extract

import (
	"regexp"
	"strings"
)

// BlockPlaceholder is what a chart block collapses to in chat text.
const BlockPlaceholder = "(chart attached)"

var (
	horizontalRule = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|_{3,}|\*{3,})[ \t]*$`)
	leadMarkersRe  = regexp.MustCompile(`(?m)^[ \t]*(?:#+[ \t]*|[-+*][ \t]+|\d+\.[ \t]+)+`)
	blankRunsRe    = regexp.MustCompile(`\n{3,}`)
)

// Sanitize produces the user-facing text of a model response: chart
// blocks give way to a short placeholder and presentational markup is
// stripped. Both transforms are idempotent, so already-clean input
// passes through unchanged and they compose in either order.
func Sanitize(text string) string {
	return NormalizeMarkup(RemoveChartBlocks(text))
}

// RemoveChartBlocks replaces every delimited chart span, parseable or
// not, with BlockPlaceholder so transcripts never show raw payloads.
func RemoveChartBlocks(text string) string {
	spans := findBlocks(text)
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span.outerStart])
		b.WriteString(BlockPlaceholder)
		last = span.outerEnd
	}
	b.WriteString(text[last:])
	return b.String()
}

// NormalizeMarkup strips heading, emphasis, code, list and rule markers
// and collapses run-on blank lines to at most one. Stripping one marker
// can expose another underneath (a heading wrapping a bullet, emphasis
// wrapping a numbered item), so passes repeat until the text stops
// changing; the fixpoint is what makes the transform idempotent.
func NormalizeMarkup(text string) string {
	for i := 0; i < 4; i++ {
		next := normalizeOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func normalizeOnce(text string) string {
	text = fenceLineRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "`", "")
	text = horizontalRule.ReplaceAllString(text, "")
	text = leadMarkersRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "__", "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
