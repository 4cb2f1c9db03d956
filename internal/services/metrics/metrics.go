package metrics

import (
	"csvdash/internal/models"
	"csvdash/internal/services/planner"
)

// Service provides metric calculation functionality
type Service struct{}

// New creates a new metrics service
func New() *Service {
	return &Service{}
}

// CalculateMetrics computes the KPI header for a dataset.
// Totals are only filled in when the dataset has type and amount columns.
func (s *Service) CalculateMetrics(ds *models.Dataset) *models.DashboardMetrics {
	m := &models.DashboardMetrics{
		RowCount:    ds.Table.Len(),
		ColumnCount: ds.Table.Width(),
	}

	if byType, ok := planner.SumByType(ds); ok {
		income := byType.Get(planner.IncomeType)
		expenses := byType.Get(planner.ExpenseType).Abs()

		m.HasTotals = true
		m.TotalIncome = income.InexactFloat64()
		m.TotalExpenses = expenses.InexactFloat64()
		m.Net = income.Sub(expenses).InexactFloat64()
		if income.IsPositive() {
			m.SavingsRate = income.Sub(expenses).Div(income).InexactFloat64() * 100
		}
		m.TypeLabels = byType.Keys()
		m.TypeTotals = byType.Floats()
	}

	if ds.Caps.HasDate {
		for _, r := range ds.Records() {
			if !r.HasDate {
				m.MissingDates++
				continue
			}
			if m.StartDate.IsZero() || r.Date.Before(m.StartDate) {
				m.StartDate = r.Date
			}
			if m.EndDate.IsZero() || r.Date.After(m.EndDate) {
				m.EndDate = r.Date
			}
		}
	}

	return m
}
