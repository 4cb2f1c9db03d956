package metrics

import (
	"math"
	"strings"
	"testing"
	"time"

	"csvdash/internal/models"
	"csvdash/internal/services/dataloader"
	"csvdash/internal/services/schema"
)

func dataset(t *testing.T, content string) *models.Dataset {
	t.Helper()
	table, err := dataloader.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return schema.Normalize(table)
}

func TestCalculateMetrics(t *testing.T) {
	ds := dataset(t, `type,amount,category,date
income,100,salary,2024-01-01
expense,40,rent,2024-01-02
expense,10,rent,
expense,-5,food,2024-01-09`)

	m := New().CalculateMetrics(ds)

	if !m.HasTotals {
		t.Fatal("expected totals")
	}
	if m.TotalIncome != 100 || m.TotalExpenses != 45 || m.Net != 55 {
		t.Errorf("income/expenses/net = %v/%v/%v, want 100/45/55", m.TotalIncome, m.TotalExpenses, m.Net)
	}
	if math.Abs(m.SavingsRate-55) > 1e-9 {
		t.Errorf("savings rate = %v, want 55", m.SavingsRate)
	}
	if m.RowCount != 4 || m.ColumnCount != 4 {
		t.Errorf("rows/cols = %d/%d, want 4/4", m.RowCount, m.ColumnCount)
	}
	if m.MissingDates != 1 {
		t.Errorf("missing dates = %d, want 1", m.MissingDates)
	}
	if !m.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) ||
		!m.EndDate.Equal(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("span = %v - %v", m.StartDate, m.EndDate)
	}
	if strings.Join(m.TypeLabels, ",") != "income,expense" {
		t.Errorf("type labels = %v", m.TypeLabels)
	}
}

func TestCalculateMetricsWithoutTotals(t *testing.T) {
	ds := dataset(t, "name,score\nann,3\nbob,4\n")

	m := New().CalculateMetrics(ds)
	if m.HasTotals || m.TotalIncome != 0 {
		t.Errorf("metrics = %+v, want no totals", m)
	}
	if m.RowCount != 2 || !m.StartDate.IsZero() {
		t.Errorf("metrics = %+v", m)
	}
}
