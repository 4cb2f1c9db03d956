package planner

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"csvdash/internal/models"
	"csvdash/internal/services/dataloader"
	"csvdash/internal/services/schema"
)

const threeRows = `type,amount,category,date
income,100,salary,2024-01-01
expense,40,rent,2024-01-02
expense,10,rent,2024-01-03`

const mixedRows = `type,amount,category,date,description
income,3000,salary,2024-01-01,Monthly salary
expense,1200,rent,2024-01-01,Rent for January
expense,85.40,groceries,2024-01-03,Grocery store run
expense,42.10,groceries,2024-01-03,Corner store
expense,60,,2024-01-05,Misc cash
expense,15,transport,,Bus pass
refund,20,groceries,2024-01-06,Store refund
income,250,freelance,2024-01-10,Side project`

func loadDataset(t *testing.T, content string) *models.Dataset {
	t.Helper()
	table, err := dataloader.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return schema.WithYearMonth(schema.Normalize(table))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestThreeRowScenario(t *testing.T) {
	ds := loadDataset(t, threeRows)

	byType, ok := SumByType(ds)
	if !ok {
		t.Fatal("SumByType not available")
	}
	if got := byType.Get("income"); !got.Equal(dec("100")) {
		t.Errorf("income = %s, want 100", got)
	}
	if got := byType.Get("expense"); !got.Equal(dec("50")) {
		t.Errorf("expense = %s, want 50", got)
	}

	byCategory, ok := ExpensesByCategory(ds)
	if !ok {
		t.Fatal("ExpensesByCategory not available")
	}
	if len(byCategory) != 1 || byCategory[0].Key != "rent" || !byCategory[0].Total.Equal(dec("50")) {
		t.Errorf("category sums = %+v, want {rent: 50}", byCategory)
	}

	pivot, ok := Pivot(ds)
	if !ok {
		t.Fatal("Pivot not available")
	}
	if got := pivot.Cell("rent", "expense"); !got.Equal(dec("50")) {
		t.Errorf("pivot[rent][expense] = %s, want 50", got)
	}
	if got := pivot.Cell("rent", "income"); !got.IsZero() {
		t.Errorf("pivot[rent][income] = %s, want 0", got)
	}

	sankey, ok := Sankey(ds)
	if !ok {
		t.Fatal("Sankey not available")
	}
	if len(sankey.Links) != 2 {
		t.Fatalf("got %d links, want 2", len(sankey.Links))
	}
	for _, l := range sankey.Links {
		if l.Source != 0 || sankey.Nodes[l.Target] != "rent" {
			t.Errorf("link %+v does not flow from income to rent", l)
		}
	}
}

func TestSumByTypeIgnoresAliasedColumn(t *testing.T) {
	ds := loadDataset(t, "value,type,amount,category\n999,expense,10,rent\n")

	byType, ok := SumByType(ds)
	if !ok {
		t.Fatal("SumByType not available")
	}
	if got := byType.Get("expense"); !got.Equal(dec("10")) {
		t.Errorf("expense = %s, want 10", got)
	}
}

func TestSumByTypeConservation(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	byType, _ := SumByType(ds)
	total := decimal.Zero
	for _, r := range ds.Records() {
		if r.HasType && r.HasAmount {
			total = total.Add(r.Amount)
		}
	}
	if !byType.Sum().Equal(total) {
		t.Errorf("sum of groups = %s, want %s", byType.Sum(), total)
	}

	keys := strings.Join(byType.Keys(), ",")
	if keys != "income,expense,refund" {
		t.Errorf("group order = %s, want first-appearance order", keys)
	}
}

func TestExpensesByCategoryConservation(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	byCategory, _ := ExpensesByCategory(ds)
	byType, _ := SumByType(ds)

	if !byCategory.Sum().Equal(byType.Get(ExpenseType)) {
		t.Errorf("category total = %s, expense total = %s", byCategory.Sum(), byType.Get(ExpenseType))
	}
	if got := byCategory.Get(models.UncategorizedLabel); !got.Equal(dec("60")) {
		t.Errorf("uncategorized = %s, want 60", got)
	}
	// Refunds are not expenses
	if got := byCategory.Get("groceries"); !got.Equal(dec("127.5")) {
		t.Errorf("groceries = %s, want 127.5", got)
	}
}

func TestTimeSeries(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	ts, ok := TimeSeries(ds)
	if !ok {
		t.Fatal("TimeSeries not available")
	}

	var expense *models.Series
	for i := range ts.Series {
		if ts.Series[i].Name == ExpenseType {
			expense = &ts.Series[i]
		}
	}
	if expense == nil {
		t.Fatal("no expense series")
	}

	// The undated transport row is excluded
	if len(expense.Points) != 3 {
		t.Fatalf("got %d expense points, want 3", len(expense.Points))
	}
	for i := 1; i < len(expense.Points); i++ {
		if !expense.Points[i-1].Date.Before(expense.Points[i].Date) {
			t.Error("points must be in ascending date order")
		}
	}

	jan3 := expense.Points[1]
	if jan3.Count != 2 || !jan3.Value.Equal(dec("63.75")) {
		t.Errorf("2024-01-03 point = %+v, want mean 63.75 over 2 rows", jan3)
	}
}

func TestFilterCategories(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	all, ok := FilterCategories(ds, nil)
	if !ok {
		t.Fatal("FilterCategories not available")
	}
	if len(all.Rows) != len(expenseRecords(ds)) {
		t.Errorf("default selection has %d rows, want every expense row (%d)", len(all.Rows), len(expenseRecords(ds)))
	}
	if strings.Join(all.Selected, ",") != strings.Join(all.Available, ",") {
		t.Errorf("default selection = %v, want all of %v", all.Selected, all.Available)
	}

	some, _ := FilterCategories(ds, []string{"groceries"})
	if len(some.Rows) != 2 {
		t.Errorf("got %d grocery rows, want 2", len(some.Rows))
	}
	for _, r := range some.Rows {
		if r.Category != "groceries" || r.Type != ExpenseType {
			t.Errorf("unexpected row %+v", r)
		}
	}

	none, _ := FilterCategories(ds, []string{"does-not-exist"})
	if len(none.Rows) != 0 || len(none.Totals) != 0 {
		t.Errorf("unknown category should select nothing, got %d rows", len(none.Rows))
	}
}

func TestDistinctCategories(t *testing.T) {
	ds := loadDataset(t, mixedRows)
	got := strings.Join(DistinctCategories(ds), ",")
	want := "salary,rent,groceries,Uncategorized,transport,freelance"
	if got != want {
		t.Errorf("DistinctCategories = %s, want %s", got, want)
	}
}

func TestSankeyEdgePerExpenseRow(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	g, _ := Sankey(ds)
	if len(g.Links) != len(expenseRecords(ds)) {
		t.Errorf("got %d links, want %d", len(g.Links), len(expenseRecords(ds)))
	}
	if g.Nodes[0] != IncomeNode {
		t.Errorf("node 0 = %s, want %s", g.Nodes[0], IncomeNode)
	}
	for _, n := range g.Nodes[1:] {
		if n == "salary" || n == "freelance" {
			t.Errorf("income category %s should not be a target", n)
		}
	}
}

func TestPivotZeroFill(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	p, _ := Pivot(ds)
	if strings.Join(p.Columns, ",") != "expense,income,refund" {
		t.Errorf("columns = %v, want sorted types", p.Columns)
	}
	if got := p.Cell("salary", "expense"); !got.IsZero() {
		t.Errorf("pivot[salary][expense] = %s, want 0", got)
	}
	if got := p.Cell("groceries", "refund"); !got.Equal(dec("20")) {
		t.Errorf("pivot[groceries][refund] = %s, want 20", got)
	}
}

func TestWordFrequencies(t *testing.T) {
	got := WordFrequencies("The store, the STORE and a corner store. Bus pass", 2)
	if len(got) != 2 {
		t.Fatalf("got %d words, want 2", len(got))
	}
	if got[0].Word != "store" || got[0].Count != 3 {
		t.Errorf("top word = %+v, want store x3", got[0])
	}
	if got[1].Word != "bus" {
		t.Errorf("second word = %s, want bus (alphabetical tie-break)", got[1].Word)
	}
}

func TestHierarchyParentsCarryTotals(t *testing.T) {
	ds := loadDataset(t, threeRows)

	h, _ := Hierarchy(ds)
	values := make(map[string]decimal.Decimal)
	for _, n := range h.Nodes {
		values[n.ID] = n.Value
	}
	if !values["expense"].Equal(dec("50")) || !values["expense/rent"].Equal(dec("50")) {
		t.Errorf("expense branch = %s / %s, want 50 / 50", values["expense"], values["expense/rent"])
	}
}

func TestPlanOrderAndSkips(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	specs := Plan(ds, Options{})
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	if strings.Join(ids, ",") != strings.Join(ChartIDs(), ",") {
		t.Errorf("plan = %v, want every chart in order", ids)
	}

	first := specs[0]
	if first.Title != "Total Income and Expenses" || first.Kind != models.ChartBar {
		t.Errorf("first chart = %s (%s)", first.Title, first.Kind)
	}
}

func TestPlanWithoutDate(t *testing.T) {
	ds := loadDataset(t, "type,amount,category\nincome,100,salary\nexpense,40,rent\n")

	for _, s := range Plan(ds, Options{}) {
		switch s.ID {
		case "over-time", "amount-scatter", "amount-3d":
			t.Errorf("chart %s should be skipped without a date column", s.ID)
		}
	}

	if _, ok := Chart(ds, "over-time", Options{}); ok {
		t.Error("Chart(over-time) should not be available")
	}
	if _, ok := TimeSeries(ds); ok {
		t.Error("TimeSeries should report unavailable")
	}
	if _, ok := Chart(ds, "totals-by-type", Options{}); !ok {
		t.Error("totals-by-type should still be available")
	}
}

func TestPlanWithoutType(t *testing.T) {
	ds := loadDataset(t, "amount,description\n5,coffee beans\n")

	specs := Plan(ds, Options{})
	if len(specs) != 1 || specs[0].ID != "description-words" {
		t.Errorf("plan = %+v, want only the word cloud", specs)
	}
}

func TestChartFilterable(t *testing.T) {
	ds := loadDataset(t, mixedRows)

	spec, ok := Chart(ds, "filtered-expenses", Options{Categories: []string{"rent"}})
	if !ok {
		t.Fatal("filtered-expenses not available")
	}
	sel := spec.Slice.(*models.CategorySelection)
	if len(sel.Totals) != 1 || !sel.Totals.Get("rent").Equal(dec("1200")) {
		t.Errorf("filtered totals = %+v, want {rent: 1200}", sel.Totals)
	}

	if _, ok := Chart(ds, "nope", Options{}); ok {
		t.Error("unknown chart id should not resolve")
	}
}

func TestDerivationsDoNotMutate(t *testing.T) {
	ds := loadDataset(t, mixedRows)
	before := ds.Table.Head(-1)

	Plan(ds, Options{Categories: []string{"rent"}})

	after := ds.Table.Head(-1)
	for i := range before {
		if strings.Join(before[i], ",") != strings.Join(after[i], ",") {
			t.Errorf("row %d changed: %v -> %v", i, before[i], after[i])
		}
	}
}
