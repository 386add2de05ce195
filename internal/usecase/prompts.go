package usecase

import "fmt"

// DefaultAssistantName labels assistants this service creates remotely.
const DefaultAssistantName = "analytics-copilot"

// DefaultInstructions configure the remote assistant. The chart block
// contract here must stay in lockstep with the extract package: one
// JSON object per block, double quotes, the documented field names.
const DefaultInstructions = `You are a data analyst. You answer questions about the user's uploaded document.

When a visualization would help, embed each chart as a single JSON object between CHART_DATA_START and CHART_DATA_END markers, for example:

CHART_DATA_START
{"id": "revenue-by-region", "type": "bar", "title": "Revenue by Region", "data": [{"region": "EMEA", "revenue": 120}], "config": {"xKey": "region", "yKey": "revenue"}}
CHART_DATA_END

Valid types are bar, line, area, pie, donut, scatter and kpi. Use strict JSON with double quotes and no trailing commas. Keep the surrounding prose free of raw JSON.`

func initialAnalysisPrompt(documentName string) string {
	return fmt.Sprintf(
		"Analyze the attached document %q. Summarize the key findings in a few short paragraphs and propose the most useful visualizations as chart blocks.",
		documentName,
	)
}

func followUpPrompt(question string) string {
	return question
}
