// Package extract recovers machine-usable chart specifications from
// free-form model output, and produces the user-facing text left over
// once those blocks are removed. Model output is never trusted:
// malformed blocks degrade to omission, not failure.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"analytics-ai-core/internal/domain/model"
)

// Delimiter spellings accepted around chart blocks. The no-underscore
// variant shows up often enough in model drift to be worth tolerating.
const (
	StartDelimiter = "CHART_DATA_START"
	EndDelimiter   = "CHART_DATA_END"

	altStartDelimiter = "CHARTDATASTART"
	altEndDelimiter   = "CHARTDATAEND"
)

// aliasTable declares every accepted spelling for each canonical
// top-level field, in priority order. Acceptance of the model's two
// naming conventions lives here and nowhere else.
var aliasTable = map[string][]string{
	"id":          {"id", "chart_id", "chartId"},
	"type":        {"type", "chart_type", "chartType"},
	"title":       {"title", "chart_title", "chartTitle"},
	"description": {"description", "chart_description", "desc"},
	"data":        {"data", "chart_data", "dataRows", "rows"},
	"config":      {"config", "chart_config", "chartConfig"},
}

// configAliases covers the nested config object.
var configAliases = map[string][]string{
	"xKey":        {"xKey", "x_key"},
	"yKey":        {"yKey", "y_key", "yKeys", "y_keys"},
	"nameKey":     {"nameKey", "name_key"},
	"valueKey":    {"valueKey", "value_key"},
	"colors":      {"colors", "color_palette"},
	"showLegend":  {"showLegend", "show_legend"},
	"showGrid":    {"showGrid", "show_grid"},
	"showTooltip": {"showTooltip", "show_tooltip"},
	"kpiFields":   {"kpiFields", "kpi_fields"},
}

var (
	fenceLineRe    = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$")
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteSub = strings.NewReplacer("'", `"`)
)

// ParseCharts scans text for delimited chart blocks and returns every
// spec that survives parsing, repair and validation, plus the number of
// blocks attempted. It never returns an error: one bad block must not
// cost the caller the rest.
func ParseCharts(text string) ([]model.ChartSpec, int) {
	spans := findBlocks(text)
	charts := make([]model.ChartSpec, 0, len(spans))
	for _, span := range spans {
		if spec, ok := parseBlock(span); ok {
			charts = append(charts, spec)
		}
	}
	return charts, len(spans)
}

type blockSpan struct {
	outerStart, outerEnd int // including delimiters
	body                 string
}

// findBlocks locates every delimited span, accepting either delimiter
// spelling on either side.
func findBlocks(text string) []blockSpan {
	var spans []blockSpan
	pos := 0
	for {
		start, startLen := indexEither(text[pos:], StartDelimiter, altStartDelimiter)
		if start < 0 {
			return spans
		}
		start += pos
		bodyFrom := start + startLen

		end, endLen := indexEither(text[bodyFrom:], EndDelimiter, altEndDelimiter)
		if end < 0 {
			return spans
		}
		end += bodyFrom

		spans = append(spans, blockSpan{
			outerStart: start,
			outerEnd:   end + endLen,
			body:       text[bodyFrom:end],
		})
		pos = end + endLen
	}
}

// indexEither returns the earliest occurrence of either needle and the
// length of the one that matched.
func indexEither(s, a, b string) (int, int) {
	ia := strings.Index(s, a)
	ib := strings.Index(s, b)
	switch {
	case ia < 0 && ib < 0:
		return -1, 0
	case ib < 0 || (ia >= 0 && ia <= ib):
		return ia, len(a)
	default:
		return ib, len(b)
	}
}

func parseBlock(span blockSpan) (model.ChartSpec, bool) {
	payload := stripFences(span.body)

	raw, ok := decodeObject(payload)
	if !ok {
		// One bounded repair pass: the model's most common mechanical
		// mistakes are single-quoted strings and trailing commas.
		raw, ok = decodeObject(repairJSON(payload))
		if !ok {
			return model.ChartSpec{}, false
		}
	}
	return normalize(raw)
}

// stripFences removes any enclosing markdown code fencing the model may
// have wrapped around the payload.
func stripFences(s string) string {
	s = fenceLineRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func decodeObject(s string) (map[string]any, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}
	return raw, true
}

func repairJSON(s string) string {
	s = singleQuoteSub.Replace(s)
	return trailingComma.ReplaceAllString(s, "$1")
}

// normalize maps a decoded block onto the canonical ChartSpec shape,
// rejecting blocks that lack a usable type or title and filling the
// documented structural defaults for everything else.
func normalize(raw map[string]any) (model.ChartSpec, bool) {
	typ := model.ChartType(strings.ToLower(pick(raw, "type")))
	title := pick(raw, "title")
	if !typ.Valid() || title == "" {
		return model.ChartSpec{}, false
	}

	spec := model.ChartSpec{
		ID:          pick(raw, "id"),
		Type:        typ,
		Title:       title,
		Description: pick(raw, "description"),
		Data:        dataRows(lookup(raw, aliasTable["data"])),
	}
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}

	cfg, _ := lookup(raw, aliasTable["config"]).(map[string]any)
	spec.Style = styleConfig(cfg)

	switch {
	case typ.Categorical():
		spec.Series = seriesConfig(cfg)
	case typ == model.ChartKPI:
		spec.KPI = kpiConfig(cfg)
	default:
		spec.Axis = axisConfig(cfg)
	}
	return spec, true
}

func styleConfig(cfg map[string]any) model.StyleConfig {
	style := model.StyleConfig{
		Colors:      stringList(lookupCfg(cfg, "colors")),
		ShowLegend:  boolOrTrue(lookupCfg(cfg, "showLegend")),
		ShowGrid:    boolOrTrue(lookupCfg(cfg, "showGrid")),
		ShowTooltip: boolOrTrue(lookupCfg(cfg, "showTooltip")),
	}
	if len(style.Colors) == 0 {
		style.Colors = append([]string(nil), model.DefaultPalette...)
	}
	return style
}

func axisConfig(cfg map[string]any) *model.AxisConfig {
	return &model.AxisConfig{
		XKey:  asString(lookupCfg(cfg, "xKey")),
		YKeys: stringList(lookupCfg(cfg, "yKey")),
	}
}

func seriesConfig(cfg map[string]any) *model.SeriesConfig {
	series := &model.SeriesConfig{
		NameKey:  asString(lookupCfg(cfg, "nameKey")),
		ValueKey: asString(lookupCfg(cfg, "valueKey")),
	}
	if series.NameKey == "" {
		series.NameKey = "category"
	}
	if series.ValueKey == "" {
		series.ValueKey = "value"
	}
	return series
}

func kpiConfig(cfg map[string]any) *model.KPIConfig {
	fields, _ := lookupCfg(cfg, "kpiFields").(map[string]any)
	return &model.KPIConfig{
		Value:          asString(fields["value"]),
		Trend:          asString(fields["trend"]),
		TrendDirection: asString(fields["trendDirection"]),
		Period:         asString(fields["period"]),
		Unit:           asString(fields["unit"]),
		Target:         asString(fields["target"]),
	}
}

// pick resolves a canonical top-level field through the alias table.
func pick(raw map[string]any, canonical string) string {
	return asString(lookup(raw, aliasTable[canonical]))
}

func lookup(raw map[string]any, names []string) any {
	for _, n := range names {
		if v, ok := raw[n]; ok && v != nil {
			return v
		}
	}
	return nil
}

func lookupCfg(cfg map[string]any, canonical string) any {
	if cfg == nil {
		return nil
	}
	return lookup(cfg, configAliases[canonical])
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// stringList accepts both a single string and a list of strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// boolOrTrue defaults to true unless the model explicitly said false.
func boolOrTrue(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func dataRows(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return []map[string]any{}
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}
