package model

// ChartType enumerates the chart kinds the extraction layer accepts.
type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartArea    ChartType = "area"
	ChartPie     ChartType = "pie"
	ChartDonut   ChartType = "donut"
	ChartScatter ChartType = "scatter"
	ChartKPI     ChartType = "kpi"
)

// Valid reports whether t is one of the accepted chart types.
func (t ChartType) Valid() bool {
	switch t {
	case ChartBar, ChartLine, ChartArea, ChartPie, ChartDonut, ChartScatter, ChartKPI:
		return true
	}
	return false
}

// Categorical reports whether the chart plots name/value pairs
// rather than axis-keyed series.
func (t ChartType) Categorical() bool {
	return t == ChartPie || t == ChartDonut
}

// DefaultPalette is the fallback color cycle applied when the model
// output carries no colors of its own.
var DefaultPalette = []string{
	"#4E79A7", "#F28E2B", "#E15759", "#76B7B2", "#59A14F",
	"#EDC948", "#B07AA1", "#FF9DA7", "#9C755F", "#BAB0AC",
}

// StyleConfig holds the presentation toggles shared by every chart type.
type StyleConfig struct {
	Colors      []string `json:"colors"`
	ShowLegend  bool     `json:"showLegend"`
	ShowGrid    bool     `json:"showGrid"`
	ShowTooltip bool     `json:"showTooltip"`
}

// AxisConfig applies to bar, line, area and scatter charts.
type AxisConfig struct {
	XKey  string   `json:"xKey"`
	YKeys []string `json:"yKeys"`
}

// SeriesConfig applies to pie and donut charts.
type SeriesConfig struct {
	NameKey  string `json:"nameKey"`
	ValueKey string `json:"valueKey"`
}

// KPIConfig names the data fields a KPI tile reads its figures from.
type KPIConfig struct {
	Value          string `json:"value"`
	Trend          string `json:"trend"`
	TrendDirection string `json:"trendDirection"`
	Period         string `json:"period"`
	Unit           string `json:"unit"`
	Target         string `json:"target"`
}

// ChartSpec is the canonical, validated representation of one chart.
// The shared base (id, type, title, data, style) is always populated;
// exactly one of the variant configs is set, matching Type.
type ChartSpec struct {
	ID          string           `json:"id"`
	Type        ChartType        `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Data        []map[string]any `json:"data"`
	Style       StyleConfig      `json:"style"`

	Axis   *AxisConfig   `json:"axis,omitempty"`
	Series *SeriesConfig `json:"series,omitempty"`
	KPI    *KPIConfig    `json:"kpi,omitempty"`
}
