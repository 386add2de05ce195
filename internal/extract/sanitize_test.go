package extract

import (
	"strings"
	"testing"
)

const modelReply = `## Key Findings

Revenue **grew 12%** quarter over quarter.

CHART_DATA_START
{"id": "rev", "type": "bar", "title": "Revenue", "data": [{"q": "Q1", "v": 10}]}
CHART_DATA_END

* EMEA leads all regions
* APAC is recovering

---

1. Consider expanding the EMEA team
2. Revisit APAC pricing

` + "```python\nprint('analysis')\n```"

func TestSanitizeRemovesBlocksAndMarkup(t *testing.T) {
	out := Sanitize(modelReply)

	if strings.Contains(out, "CHART_DATA_START") || strings.Contains(out, `"type": "bar"`) {
		t.Fatalf("raw block leaked: %q", out)
	}
	if !strings.Contains(out, BlockPlaceholder) {
		t.Fatalf("placeholder missing: %q", out)
	}
	for _, marker := range []string{"##", "**", "* EMEA", "---", "```", "1. "} {
		if strings.Contains(out, marker) {
			t.Fatalf("marker %q survived: %q", marker, out)
		}
	}
	if !strings.Contains(out, "Key Findings") || !strings.Contains(out, "grew 12%") {
		t.Fatalf("content lost: %q", out)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		modelReply,
		"plain text, nothing to do",
		"CHARTDATASTART {\"id\":\"x\"} CHARTDATAEND",
		"# - nested marker soup\n**- bold bullet**\n\n\n\nmany blanks",
		"",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\nonce:  %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestRemoveChartBlocksHandlesBothSpellings(t *testing.T) {
	text := "a CHART_DATA_START {} CHART_DATA_END b CHARTDATASTART {} CHARTDATAEND c"
	out := RemoveChartBlocks(text)
	if strings.Count(out, BlockPlaceholder) != 2 {
		t.Fatalf("placeholders = %d, want 2: %q", strings.Count(out, BlockPlaceholder), out)
	}
	if strings.Contains(out, "CHART") {
		t.Fatalf("delimiters survived: %q", out)
	}
}

func TestRemoveChartBlocksLeavesUnterminatedBlockAlone(t *testing.T) {
	text := "prose CHART_DATA_START {\"id\": \"x\"} and no end marker"
	if out := RemoveChartBlocks(text); out != text {
		t.Fatalf("unterminated block must pass through: %q", out)
	}
}

func TestNormalizeMarkupCollapsesBlankRuns(t *testing.T) {
	out := NormalizeMarkup("one\n\n\n\n\ntwo")
	if out != "one\n\ntwo" {
		t.Fatalf("out = %q", out)
	}
}

func TestNormalizeMarkupKeepsSnakeCase(t *testing.T) {
	out := NormalizeMarkup("the revenue_by_region field matters")
	if out != "the revenue_by_region field matters" {
		t.Fatalf("out = %q", out)
	}
}

func TestSanitizeOrderIndependent(t *testing.T) {
	a := NormalizeMarkup(RemoveChartBlocks(modelReply))
	b := RemoveChartBlocks(NormalizeMarkup(modelReply))
	if a != b {
		t.Fatalf("transforms not composable:\nA: %q\nB: %q", a, b)
	}
}
