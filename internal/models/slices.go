package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UncategorizedLabel is used for rows whose category is missing
const UncategorizedLabel = "Uncategorized"

// GroupTotal is the summed amount of one group
type GroupTotal struct {
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// GroupTotals is an ordered list of group sums
type GroupTotals []GroupTotal

// Get returns the total for key (zero when absent)
func (g GroupTotals) Get(key string) decimal.Decimal {
	for _, gt := range g {
		if gt.Key == key {
			return gt.Total
		}
	}
	return decimal.Zero
}

// Sum returns the total over every group
func (g GroupTotals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, gt := range g {
		sum = sum.Add(gt.Total)
	}
	return sum
}

// Keys returns the group keys in order
func (g GroupTotals) Keys() []string {
	keys := make([]string, len(g))
	for i, gt := range g {
		keys[i] = gt.Key
	}
	return keys
}

// Floats returns the totals as float64 for chart output
func (g GroupTotals) Floats() []float64 {
	values := make([]float64, len(g))
	for i, gt := range g {
		values[i] = gt.Total.InexactFloat64()
	}
	return values
}

// SeriesPoint is one aggregated point of a time series
type SeriesPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count"`
}

// Series is a date-ordered line for one type
type Series struct {
	Name   string        `json:"name"`
	Points []SeriesPoint `json:"points"`
}

// TimeSeries holds one series per distinct type
type TimeSeries struct {
	Series []Series `json:"series"`
}

// CategorySelection is the expense subset narrowed by the category filter
type CategorySelection struct {
	Available []string    `json:"available"`
	Selected  []string    `json:"selected"`
	Rows      []Record    `json:"-"`
	Totals    GroupTotals `json:"totals"`
}

// Pivot is a category x type cross-tabulation of summed amounts
type Pivot struct {
	Rows    []string            `json:"rows"`
	Columns []string            `json:"columns"`
	Cells   [][]decimal.Decimal `json:"cells"`
}

// Cell returns the value for (row, column); absent combinations are zero
func (p *Pivot) Cell(row, column string) decimal.Decimal {
	ri, ci := -1, -1
	for i, r := range p.Rows {
		if r == row {
			ri = i
			break
		}
	}
	for i, c := range p.Columns {
		if c == column {
			ci = i
			break
		}
	}
	if ri < 0 || ci < 0 {
		return decimal.Zero
	}
	return p.Cells[ri][ci]
}

// SankeyLink is one weighted edge between node indexes
type SankeyLink struct {
	Source int             `json:"source"`
	Target int             `json:"target"`
	Value  decimal.Decimal `json:"value"`
}

// SankeyGraph is the income to expense-category flow
type SankeyGraph struct {
	Nodes []string     `json:"nodes"`
	Links []SankeyLink `json:"links"`
}

// WordCount is the frequency of one word
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// WordCloud is the text blob handed to the word-cloud renderer plus its frequencies
type WordCloud struct {
	Text  string      `json:"text"`
	Words []WordCount `json:"words"`
}

// HierarchyNode is one node of a type -> category tree
type HierarchyNode struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Parent string          `json:"parent"`
	Value  decimal.Decimal `json:"value"`
}

// Hierarchy feeds the treemap and sunburst charts
type Hierarchy struct {
	Nodes []HierarchyNode `json:"nodes"`
}

// Distribution is the list of amounts of one group
type Distribution struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Distributions feeds the histogram, box and violin charts
type Distributions struct {
	Groups []Distribution `json:"groups"`
}

// ScatterPoint is one row positioned by date and amount
type ScatterPoint struct {
	Date     time.Time `json:"date"`
	Amount   float64   `json:"amount"`
	Type     string    `json:"type"`
	Category string    `json:"category"`
}

// ScatterPoints feeds the amount-over-time scatter chart
type ScatterPoints struct {
	Points []ScatterPoint `json:"points"`
}

// Point3D is one row positioned by year, month and amount
type Point3D struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
	Type   string  `json:"type"`
}

// Scatter3D feeds the 3D scatter chart
type Scatter3D struct {
	Points []Point3D `json:"points"`
}
