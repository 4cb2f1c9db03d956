package models

import "time"

// ChartKind names the visual form a chart is rendered as
type ChartKind string

const (
	ChartBar       ChartKind = "bar"
	ChartLine      ChartKind = "line"
	ChartPie       ChartKind = "pie"
	ChartTreemap   ChartKind = "treemap"
	ChartHistogram ChartKind = "histogram"
	ChartSankey    ChartKind = "sankey"
	ChartScatter   ChartKind = "scatter"
	ChartBox       ChartKind = "box"
	ChartViolin    ChartKind = "violin"
	ChartHeatmap   ChartKind = "heatmap"
	ChartSunburst  ChartKind = "sunburst"
	ChartWordCloud ChartKind = "wordcloud"
	ChartScatter3D ChartKind = "scatter3d"
)

// Aggregation names how the y values of a chart were combined
type Aggregation string

const (
	AggNone  Aggregation = "none"
	AggSum   Aggregation = "sum"
	AggMean  Aggregation = "mean"
	AggCount Aggregation = "count"
)

// ChartSpec describes one chart: its derived slice plus display parameters.
// A spec is built per request and never modified afterwards.
type ChartSpec struct {
	ID          string      `json:"id"`
	Kind        ChartKind   `json:"kind"`
	Title       string      `json:"title"`
	XField      string      `json:"x_field,omitempty"`
	YField      string      `json:"y_field,omitempty"`
	ColorField  string      `json:"color_field,omitempty"`
	Aggregation Aggregation `json:"aggregation"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Filterable  bool        `json:"filterable,omitempty"`

	// Slice is one of the derived slice types (GroupTotals, *Pivot, ...)
	Slice interface{} `json:"-"`
}

// DashboardMetrics contains the KPI header values for a dataset
type DashboardMetrics struct {
	TotalIncome   float64   `json:"total_income"`
	TotalExpenses float64   `json:"total_expenses"`
	Net           float64   `json:"net"`
	SavingsRate   float64   `json:"savings_rate"`
	HasTotals     bool      `json:"has_totals"`
	RowCount      int       `json:"row_count"`
	ColumnCount   int       `json:"column_count"`
	MissingDates  int       `json:"missing_dates"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`

	// Per-type totals in first-appearance order
	TypeLabels []string  `json:"type_labels"`
	TypeTotals []float64 `json:"type_totals"`
}

// ChartResponse is a Plotly figure: traces plus layout
type ChartResponse struct {
	Data   []map[string]interface{} `json:"data"`
	Layout map[string]interface{}   `json:"layout"`
}

// ChartIndexEntry lists a chart available for a dataset
type ChartIndexEntry struct {
	ID         string    `json:"id"`
	Kind       ChartKind `json:"kind"`
	Title      string    `json:"title"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Filterable bool      `json:"filterable,omitempty"`
	Snapshot   bool      `json:"snapshot,omitempty"`
}
