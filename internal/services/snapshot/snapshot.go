// Package snapshot renders the core dashboard charts to static PNG images
// for download and for clients without JavaScript.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"csvdash/internal/models"
)

var (
	// ErrUnsupported is returned for chart kinds without a static renderer
	ErrUnsupported = errors.New("chart kind has no snapshot renderer")
	// ErrNoData is returned when a chart has nothing to draw
	ErrNoData = errors.New("chart has no data to draw")
)

// Supports reports whether a chart kind can be rendered as a PNG
func Supports(kind models.ChartKind) bool {
	switch kind {
	case models.ChartBar, models.ChartPie, models.ChartLine:
		return true
	}
	return false
}

// Render draws the chart as a PNG into w
func Render(w io.Writer, spec models.ChartSpec) error {
	switch spec.Kind {
	case models.ChartBar:
		totals, err := barTotals(spec.Slice)
		if err != nil {
			return err
		}
		return renderBar(w, spec, totals)
	case models.ChartPie:
		totals, ok := spec.Slice.(models.GroupTotals)
		if !ok {
			return fmt.Errorf("pie chart %s: unexpected slice %T", spec.ID, spec.Slice)
		}
		return renderPie(w, spec, totals)
	case models.ChartLine:
		ts, ok := spec.Slice.(*models.TimeSeries)
		if !ok {
			return fmt.Errorf("line chart %s: unexpected slice %T", spec.ID, spec.Slice)
		}
		return renderLine(w, spec, ts)
	}
	return ErrUnsupported
}

func barTotals(slice interface{}) (models.GroupTotals, error) {
	switch s := slice.(type) {
	case models.GroupTotals:
		return s, nil
	case *models.CategorySelection:
		return s.Totals, nil
	}
	return nil, fmt.Errorf("bar chart: unexpected slice %T", slice)
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

// valueRange pads the y range so a single value or a flat series still has
// a non-zero extent
func valueRange(values []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.1
	if lo < 0 {
		lo -= pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi + pad}
}

func renderBar(w io.Writer, spec models.ChartSpec, totals models.GroupTotals) error {
	if len(totals) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, len(totals))
	for i, gt := range totals {
		color := chart.GetDefaultColor(i)
		bars[i] = chart.Value{
			Label: gt.Key,
			Value: gt.Total.InexactFloat64(),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
	}

	bc := chart.BarChart{
		Title:      spec.Title,
		Width:      spec.Width,
		Height:     spec.Height,
		Background: background(),
		BarWidth:   barWidth(spec.Width, len(bars)),
		YAxis:      chart.YAxis{Range: valueRange(totals.Floats())},
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", spec.ID, err)
	}
	return nil
}

func barWidth(width, n int) int {
	bw := width / (2 * (n + 1))
	if bw > 80 {
		bw = 80
	}
	if bw < 8 {
		bw = 8
	}
	return bw
}

// renderPie draws each group by magnitude; empty groups are left out
func renderPie(w io.Writer, spec models.ChartSpec, totals models.GroupTotals) error {
	var values []chart.Value
	for _, gt := range totals {
		v := math.Abs(gt.Total.InexactFloat64())
		if v == 0 {
			continue
		}
		values = append(values, chart.Value{Label: gt.Key, Value: v})
	}
	if len(values) == 0 {
		return ErrNoData
	}

	pc := chart.PieChart{
		Title:      spec.Title,
		Width:      spec.Width,
		Height:     spec.Height,
		Background: background(),
		Values:     values,
	}
	if err := pc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", spec.ID, err)
	}
	return nil
}

func renderLine(w io.Writer, spec models.ChartSpec, ts *models.TimeSeries) error {
	var series []chart.Series
	var all []float64

	for i, s := range ts.Series {
		if len(s.Points) == 0 {
			continue
		}
		times := make([]time.Time, len(s.Points))
		ys := make([]float64, len(s.Points))
		for j, p := range s.Points {
			times[j] = p.Date
			ys[j] = p.Value.InexactFloat64()
		}
		// Pad to at least two X values for go-chart
		if len(times) == 1 {
			times = append(times, times[0].Add(24*time.Hour))
			ys = append(ys, ys[0])
		}
		all = append(all, ys...)

		color := chart.GetDefaultColor(i)
		series = append(series, chart.TimeSeries{
			Name:    s.Name,
			XValues: times,
			YValues: ys,
			Style:   chart.Style{StrokeColor: color, StrokeWidth: 2, DotColor: color, DotWidth: 3},
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:      spec.Title,
		Width:      spec.Width,
		Height:     spec.Height,
		Background: background(),
		XAxis:      chart.XAxis{Name: spec.XField, ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{Name: spec.YField, Range: valueRange(all)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", spec.ID, err)
	}
	return nil
}
