package planner

import (
	"csvdash/internal/models"
)

const (
	defaultWidth  = 700
	defaultHeight = 450

	// DefaultWordLimit caps the words handed to the word cloud
	DefaultWordLimit = 100
)

// Options carries the user-adjustable parameters of a plan
type Options struct {
	// Categories is the category filter selection; empty means all
	Categories []string
	// WordLimit caps the word cloud; <= 0 uses DefaultWordLimit
	WordLimit int
}

// chartDef is one entry of the fixed chart sequence
type chartDef struct {
	id         string
	kind       models.ChartKind
	title      string
	x, y       string
	color      string
	agg        models.Aggregation
	width      int
	height     int
	filterable bool
	requires   []models.Field
	build      func(ds *models.Dataset, opts Options) (interface{}, bool)
}

// charts is the fixed, ordered sequence of dashboard charts
var charts = []chartDef{
	{
		id: "totals-by-type", kind: models.ChartBar, title: "Total Income and Expenses",
		x: "type", y: "amount", agg: models.AggSum,
		requires: []models.Field{models.FieldType, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return SumByType(ds)
		},
	},
	{
		id: "expenses-by-category", kind: models.ChartBar, title: "Expenses by Category",
		x: "category", y: "amount", agg: models.AggSum,
		requires: []models.Field{models.FieldType, models.FieldAmount, models.FieldCategory},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return ExpensesByCategory(ds)
		},
	},
	{
		id: "over-time", kind: models.ChartLine, title: "Income and Expenses Over Time",
		x: "date", y: "amount", color: "type", agg: models.AggMean,
		requires: []models.Field{models.FieldDate, models.FieldType, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return TimeSeries(ds)
		},
	},
	{
		id: "type-share", kind: models.ChartPie, title: "Income vs Expenses",
		x: "type", y: "amount", agg: models.AggSum,
		requires: []models.Field{models.FieldType, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return SumByType(ds)
		},
	},
	{
		id: "filtered-expenses", kind: models.ChartBar, title: "Expenses by Selected Category",
		x: "category", y: "amount", agg: models.AggSum, filterable: true,
		requires: []models.Field{models.FieldType, models.FieldAmount, models.FieldCategory},
		build: func(ds *models.Dataset, opts Options) (interface{}, bool) {
			return FilterCategories(ds, opts.Categories)
		},
	},
	{
		id: "treemap", kind: models.ChartTreemap, title: "Spending Breakdown",
		x: "type", y: "amount", color: "category", agg: models.AggSum,
		requires: []models.Field{models.FieldType, models.FieldAmount, models.FieldCategory},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Hierarchy(ds)
		},
	},
	{
		id: "amount-histogram", kind: models.ChartHistogram, title: "Amount Distribution",
		x: "amount", color: "type", agg: models.AggCount,
		requires: []models.Field{models.FieldType, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Distributions(ds)
		},
	},
	{
		id: "cash-flow", kind: models.ChartSankey, title: "Cash Flow",
		x: "category", y: "amount", agg: models.AggNone,
		requires: []models.Field{models.FieldType, models.FieldAmount, models.FieldCategory},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Sankey(ds)
		},
	},
	{
		id: "amount-scatter", kind: models.ChartScatter, title: "Transactions Over Time",
		x: "date", y: "amount", color: "type", agg: models.AggNone,
		requires: []models.Field{models.FieldDate, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Scatter(ds)
		},
	},
	{
		id: "amount-box", kind: models.ChartBox, title: "Amount Spread by Type",
		x: "type", y: "amount", color: "type", agg: models.AggNone,
		requires: []models.Field{models.FieldType, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Distributions(ds)
		},
	},
	{
		id: "amount-violin", kind: models.ChartViolin, title: "Amount Density by Type",
		x: "type", y: "amount", color: "type", agg: models.AggNone,
		requires: []models.Field{models.FieldType, models.FieldAmount},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Distributions(ds)
		},
	},
	{
		id: "category-heatmap", kind: models.ChartHeatmap, title: "Amount by Category and Type",
		x: "type", y: "category", agg: models.AggSum, height: 500,
		requires: []models.Field{models.FieldType, models.FieldAmount, models.FieldCategory},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Pivot(ds)
		},
	},
	{
		id: "sunburst", kind: models.ChartSunburst, title: "Spending Hierarchy",
		x: "type", y: "amount", color: "category", agg: models.AggSum,
		requires: []models.Field{models.FieldType, models.FieldAmount, models.FieldCategory},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return Hierarchy(ds)
		},
	},
	{
		id: "description-words", kind: models.ChartWordCloud, title: "Description Word Cloud",
		x: "description", agg: models.AggCount, width: 800, height: 400,
		requires: []models.Field{models.FieldDescription},
		build: func(ds *models.Dataset, opts Options) (interface{}, bool) {
			limit := opts.WordLimit
			if limit <= 0 {
				limit = DefaultWordLimit
			}
			return WordCloud(ds, limit)
		},
	},
	{
		id: "amount-3d", kind: models.ChartScatter3D, title: "Amount by Year and Month",
		x: "year", y: "month", color: "type", agg: models.AggNone, width: 800, height: 600,
		requires: []models.Field{models.FieldDate, models.FieldAmount, models.FieldYear, models.FieldMonth},
		build: func(ds *models.Dataset, _ Options) (interface{}, bool) {
			return YearMonth(ds)
		},
	},
}

func (c chartDef) available(caps models.Capabilities) bool {
	return caps.Has(c.requires...)
}

func (c chartDef) spec(slice interface{}) models.ChartSpec {
	width, height := c.width, c.height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	return models.ChartSpec{
		ID:          c.id,
		Kind:        c.kind,
		Title:       c.title,
		XField:      c.x,
		YField:      c.y,
		ColorField:  c.color,
		Aggregation: c.agg,
		Width:       width,
		Height:      height,
		Filterable:  c.filterable,
		Slice:       slice,
	}
}

// Plan builds every chart the dataset supports, in the fixed order.
// Charts whose required columns are missing are skipped.
func Plan(ds *models.Dataset, opts Options) []models.ChartSpec {
	var specs []models.ChartSpec
	for _, c := range charts {
		if !c.available(ds.Caps) {
			continue
		}
		slice, ok := c.build(ds, opts)
		if !ok {
			continue
		}
		specs = append(specs, c.spec(slice))
	}
	return specs
}

// Chart builds a single chart by id. ok is false for unknown ids and for
// charts the dataset cannot support.
func Chart(ds *models.Dataset, id string, opts Options) (models.ChartSpec, bool) {
	for _, c := range charts {
		if c.id != id {
			continue
		}
		if !c.available(ds.Caps) {
			return models.ChartSpec{}, false
		}
		slice, ok := c.build(ds, opts)
		if !ok {
			return models.ChartSpec{}, false
		}
		return c.spec(slice), true
	}
	return models.ChartSpec{}, false
}

// Index lists the charts available for a dataset without computing any slice
func Index(ds *models.Dataset) []models.ChartSpec {
	var specs []models.ChartSpec
	for _, c := range charts {
		if c.available(ds.Caps) {
			specs = append(specs, c.spec(nil))
		}
	}
	return specs
}

// ChartIDs returns the ids of the full chart sequence
func ChartIDs() []string {
	ids := make([]string, len(charts))
	for i, c := range charts {
		ids[i] = c.id
	}
	return ids
}
