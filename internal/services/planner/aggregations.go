// Package planner derives the per-chart data slices from a normalized dataset.
//
// Every derivation reads the dataset without modifying it and returns a fresh
// slice. A derivation whose required columns are absent returns ok=false and
// the chart it feeds is left out.
package planner

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"csvdash/internal/models"
)

const (
	IncomeType  = "income"
	ExpenseType = "expense"

	// IncomeNode is the single source node of the Sankey diagram
	IncomeNode = "Income"
)

// categoryLabel returns the category of a record, or the placeholder when missing
func categoryLabel(r models.Record) string {
	if !r.HasCategory || r.Category == "" {
		return models.UncategorizedLabel
	}
	return r.Category
}

// groupSums accumulates totals per key in first-appearance order
type groupSums struct {
	index  map[string]int
	groups models.GroupTotals
}

func newGroupSums() *groupSums {
	return &groupSums{index: make(map[string]int)}
}

func (g *groupSums) add(key string, r models.Record) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.groups)
		g.index[key] = i
		g.groups = append(g.groups, models.GroupTotal{Key: key, Total: decimal.Zero})
	}
	g.groups[i].Count++
	if r.HasAmount {
		g.groups[i].Total = g.groups[i].Total.Add(r.Amount)
	}
}

// SumByType groups rows by type and sums amount per group.
// Rows with a missing type are not grouped.
func SumByType(ds *models.Dataset) (models.GroupTotals, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount) {
		return nil, false
	}

	sums := newGroupSums()
	for _, r := range ds.Records() {
		if !r.HasType {
			continue
		}
		sums.add(r.Type, r)
	}
	return sums.groups, true
}

// ExpensesByCategory sums amount per category over rows whose type is "expense"
func ExpensesByCategory(ds *models.Dataset) (models.GroupTotals, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount, models.FieldCategory) {
		return nil, false
	}

	sums := newGroupSums()
	for _, r := range expenseRecords(ds) {
		sums.add(categoryLabel(r), r)
	}
	return sums.groups, true
}

// expenseRecords returns the rows whose type is "expense"
func expenseRecords(ds *models.Dataset) []models.Record {
	var out []models.Record
	for _, r := range ds.Records() {
		if r.HasType && r.Type == ExpenseType {
			out = append(out, r)
		}
	}
	return out
}

// TimeSeries groups rows by (date, type) and returns one date-ordered series
// per type. Each point is the mean amount on that date. Rows without a date
// are excluded.
func TimeSeries(ds *models.Dataset) (*models.TimeSeries, bool) {
	if !ds.Caps.Has(models.FieldDate, models.FieldType, models.FieldAmount) {
		return nil, false
	}

	type bucket struct {
		sum   decimal.Decimal
		count int
	}

	var typeOrder []string
	buckets := make(map[string]map[time.Time]*bucket)

	for _, r := range ds.Records() {
		if !r.HasDate || !r.HasType || !r.HasAmount {
			continue
		}
		byDate, ok := buckets[r.Type]
		if !ok {
			byDate = make(map[time.Time]*bucket)
			buckets[r.Type] = byDate
			typeOrder = append(typeOrder, r.Type)
		}
		b, ok := byDate[r.Date]
		if !ok {
			b = &bucket{sum: decimal.Zero}
			byDate[r.Date] = b
		}
		b.sum = b.sum.Add(r.Amount)
		b.count++
	}

	ts := &models.TimeSeries{}
	for _, typ := range typeOrder {
		series := models.Series{Name: typ}
		for date, b := range buckets[typ] {
			series.Points = append(series.Points, models.SeriesPoint{
				Date:  date,
				Value: b.sum.Div(decimal.NewFromInt(int64(b.count))),
				Count: b.count,
			})
		}
		sort.Slice(series.Points, func(i, j int) bool {
			return series.Points[i].Date.Before(series.Points[j].Date)
		})
		ts.Series = append(ts.Series, series)
	}

	return ts, true
}

// DistinctCategories returns the category values present, in order of first
// appearance. These are the options of the category filter.
func DistinctCategories(ds *models.Dataset) []string {
	if !ds.Caps.HasCategory {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, r := range ds.Records() {
		label := categoryLabel(r)
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

// FilterCategories restricts the expense rows to the selected categories.
// An empty selection means every category and excludes nothing.
func FilterCategories(ds *models.Dataset, selected []string) (*models.CategorySelection, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount, models.FieldCategory) {
		return nil, false
	}

	available := DistinctCategories(ds)
	allowed := make(map[string]bool, len(selected))
	for _, s := range selected {
		allowed[s] = true
	}

	sel := &models.CategorySelection{Available: available, Selected: selected}
	if len(selected) == 0 {
		sel.Selected = available
	}

	sums := newGroupSums()
	for _, r := range expenseRecords(ds) {
		label := categoryLabel(r)
		if len(allowed) > 0 && !allowed[label] {
			continue
		}
		sel.Rows = append(sel.Rows, r)
		sums.add(label, r)
	}
	sel.Totals = sums.groups

	return sel, true
}

// Pivot cross-tabulates summed amount by category (rows) and type (columns).
// Both axes are sorted; combinations with no rows are zero.
func Pivot(ds *models.Dataset) (*models.Pivot, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount, models.FieldCategory) {
		return nil, false
	}

	sums := make(map[string]map[string]decimal.Decimal)
	typeSet := make(map[string]bool)

	for _, r := range ds.Records() {
		if !r.HasType {
			continue
		}
		cat := categoryLabel(r)
		if sums[cat] == nil {
			sums[cat] = make(map[string]decimal.Decimal)
		}
		typeSet[r.Type] = true
		cell, ok := sums[cat][r.Type]
		if !ok {
			cell = decimal.Zero
		}
		if r.HasAmount {
			cell = cell.Add(r.Amount)
		}
		sums[cat][r.Type] = cell
	}

	p := &models.Pivot{}
	for cat := range sums {
		p.Rows = append(p.Rows, cat)
	}
	for typ := range typeSet {
		p.Columns = append(p.Columns, typ)
	}
	sort.Strings(p.Rows)
	sort.Strings(p.Columns)

	p.Cells = make([][]decimal.Decimal, len(p.Rows))
	for i, cat := range p.Rows {
		p.Cells[i] = make([]decimal.Decimal, len(p.Columns))
		for j, typ := range p.Columns {
			if v, ok := sums[cat][typ]; ok {
				p.Cells[i][j] = v
			} else {
				p.Cells[i][j] = decimal.Zero
			}
		}
	}

	return p, true
}

// Sankey builds the income to expense-category flow: node 0 is the income
// node, followed by one node per distinct expense category. Every expense row
// becomes one link from node 0 weighted by its amount. Other rows are ignored.
func Sankey(ds *models.Dataset) (*models.SankeyGraph, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount, models.FieldCategory) {
		return nil, false
	}

	g := &models.SankeyGraph{Nodes: []string{IncomeNode}}
	nodeIndex := make(map[string]int)

	expenses := expenseRecords(ds)
	for _, r := range expenses {
		label := categoryLabel(r)
		if _, ok := nodeIndex[label]; !ok {
			nodeIndex[label] = len(g.Nodes)
			g.Nodes = append(g.Nodes, label)
		}
	}

	for _, r := range expenses {
		value := decimal.Zero
		if r.HasAmount {
			value = r.Amount
		}
		g.Links = append(g.Links, models.SankeyLink{
			Source: 0,
			Target: nodeIndex[categoryLabel(r)],
			Value:  value,
		})
	}

	return g, true
}

// stopWords are skipped when counting description words
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"was": true, "with": true, "nan": true,
}

// WordCloud joins every description into one text blob (missing values become
// empty strings) and counts its words, most frequent first
func WordCloud(ds *models.Dataset, limit int) (*models.WordCloud, bool) {
	if !ds.Caps.HasDescription {
		return nil, false
	}

	records := ds.Records()
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = r.Description
	}
	text := strings.Join(parts, " ")

	return &models.WordCloud{Text: text, Words: WordFrequencies(text, limit)}, true
}

// WordFrequencies counts lower-cased words of two or more letters, skipping
// stop words. Ties are broken alphabetically. limit <= 0 means all words.
func WordFrequencies(text string, limit int) []models.WordCount {
	counts := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len([]rune(w)) < 2 || stopWords[w] {
			continue
		}
		counts[w]++
	}

	out := make([]models.WordCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, models.WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Hierarchy sums amount along the type -> category path. Parent nodes carry
// the total of their children.
func Hierarchy(ds *models.Dataset) (*models.Hierarchy, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount, models.FieldCategory) {
		return nil, false
	}

	types := newGroupSums()
	children := make(map[string]*groupSums)

	for _, r := range ds.Records() {
		if !r.HasType {
			continue
		}
		types.add(r.Type, r)
		if children[r.Type] == nil {
			children[r.Type] = newGroupSums()
		}
		children[r.Type].add(categoryLabel(r), r)
	}

	h := &models.Hierarchy{}
	for _, parent := range types.groups {
		h.Nodes = append(h.Nodes, models.HierarchyNode{
			ID:    parent.Key,
			Label: parent.Key,
			Value: parent.Total,
		})
		for _, child := range children[parent.Key].groups {
			h.Nodes = append(h.Nodes, models.HierarchyNode{
				ID:     parent.Key + "/" + child.Key,
				Label:  child.Key,
				Parent: parent.Key,
				Value:  child.Total,
			})
		}
	}

	return h, true
}

// Distributions collects the amount values of each type
func Distributions(ds *models.Dataset) (*models.Distributions, bool) {
	if !ds.Caps.Has(models.FieldType, models.FieldAmount) {
		return nil, false
	}

	index := make(map[string]int)
	d := &models.Distributions{}
	for _, r := range ds.Records() {
		if !r.HasType || !r.HasAmount {
			continue
		}
		i, ok := index[r.Type]
		if !ok {
			i = len(d.Groups)
			index[r.Type] = i
			d.Groups = append(d.Groups, models.Distribution{Name: r.Type})
		}
		d.Groups[i].Values = append(d.Groups[i].Values, r.Amount.InexactFloat64())
	}

	return d, true
}

// Scatter positions every dated row by date and amount, sorted by date
func Scatter(ds *models.Dataset) (*models.ScatterPoints, bool) {
	if !ds.Caps.Has(models.FieldDate, models.FieldAmount) {
		return nil, false
	}

	sp := &models.ScatterPoints{}
	for _, r := range ds.Records() {
		if !r.HasDate || !r.HasAmount {
			continue
		}
		sp.Points = append(sp.Points, models.ScatterPoint{
			Date:     r.Date,
			Amount:   r.Amount.InexactFloat64(),
			Type:     r.Type,
			Category: r.Category,
		})
	}
	sort.SliceStable(sp.Points, func(i, j int) bool {
		return sp.Points[i].Date.Before(sp.Points[j].Date)
	})

	return sp, true
}

// YearMonth positions every dated row by the derived year and month columns
func YearMonth(ds *models.Dataset) (*models.Scatter3D, bool) {
	if !ds.Caps.HasYearMonth || !ds.Caps.Has(models.FieldAmount) {
		return nil, false
	}

	s := &models.Scatter3D{}
	for _, r := range ds.Records() {
		if !r.HasDate || !r.HasAmount {
			continue
		}
		s.Points = append(s.Points, models.Point3D{
			Year:   r.Year,
			Month:  r.Month,
			Amount: r.Amount.InexactFloat64(),
			Type:   r.Type,
		})
	}

	return s, true
}
