package dashboard

import (
	"fmt"
	"math"
	"time"

	"csvdash/internal/models"
)

const dateLayout = "2006-01-02"

// Figure builds the Plotly figure for a chart spec
func Figure(spec models.ChartSpec) (models.ChartResponse, error) {
	var data []map[string]interface{}
	layout := baseLayout(spec)

	switch s := spec.Slice.(type) {
	case models.GroupTotals:
		if spec.Kind == models.ChartPie {
			data = pieTraces(s)
		} else {
			data = barTraces(s)
		}
	case *models.CategorySelection:
		data = barTraces(s.Totals)
	case *models.TimeSeries:
		data = lineTraces(s)
		layout["xaxis"] = axis(spec.XField, "date")
	case *models.Hierarchy:
		data = hierarchyTraces(spec.Kind, s)
	case *models.Distributions:
		data = distributionTraces(spec.Kind, s)
		if spec.Kind == models.ChartHistogram {
			layout["barmode"] = "overlay"
		}
	case *models.SankeyGraph:
		data = sankeyTraces(s)
	case *models.ScatterPoints:
		data = scatterTraces(s)
		layout["xaxis"] = axis(spec.XField, "date")
	case *models.Pivot:
		data = heatmapTraces(s)
	case *models.WordCloud:
		data = wordCloudTraces(s)
		hidden := map[string]interface{}{"visible": false}
		layout["xaxis"] = hidden
		layout["yaxis"] = hidden
	case *models.Scatter3D:
		data = scatter3DTraces(s)
		layout["scene"] = map[string]interface{}{
			"xaxis": map[string]interface{}{"title": "Year"},
			"yaxis": map[string]interface{}{"title": "Month"},
			"zaxis": map[string]interface{}{"title": "Amount"},
		}
	default:
		return models.ChartResponse{}, fmt.Errorf("chart %s: no figure for slice %T", spec.ID, spec.Slice)
	}

	return models.ChartResponse{Data: data, Layout: layout}, nil
}

func baseLayout(spec models.ChartSpec) map[string]interface{} {
	layout := map[string]interface{}{
		"title":  map[string]interface{}{"text": spec.Title},
		"width":  spec.Width,
		"height": spec.Height,
		"margin": map[string]interface{}{"t": 50, "b": 50, "l": 60, "r": 20},
	}
	if spec.XField != "" {
		layout["xaxis"] = axis(spec.XField, "")
	}
	if spec.YField != "" {
		layout["yaxis"] = axis(spec.YField, "")
	}
	return layout
}

func axis(title, kind string) map[string]interface{} {
	a := map[string]interface{}{"title": map[string]interface{}{"text": title}}
	if kind != "" {
		a["type"] = kind
	}
	return a
}

func barTraces(totals models.GroupTotals) []map[string]interface{} {
	return []map[string]interface{}{{
		"type": "bar",
		"x":    totals.Keys(),
		"y":    totals.Floats(),
	}}
}

func pieTraces(totals models.GroupTotals) []map[string]interface{} {
	values := totals.Floats()
	for i, v := range values {
		values[i] = math.Abs(v)
	}
	return []map[string]interface{}{{
		"type":   "pie",
		"labels": totals.Keys(),
		"values": values,
		"hole":   0.3,
	}}
}

func lineTraces(ts *models.TimeSeries) []map[string]interface{} {
	traces := make([]map[string]interface{}, 0, len(ts.Series))
	for _, s := range ts.Series {
		x := make([]string, len(s.Points))
		y := make([]float64, len(s.Points))
		for i, p := range s.Points {
			x[i] = formatDate(p.Date)
			y[i] = p.Value.InexactFloat64()
		}
		traces = append(traces, map[string]interface{}{
			"type": "scatter",
			"mode": "lines+markers",
			"name": s.Name,
			"x":    x,
			"y":    y,
		})
	}
	return traces
}

func hierarchyTraces(kind models.ChartKind, h *models.Hierarchy) []map[string]interface{} {
	n := len(h.Nodes)
	ids := make([]string, n)
	labels := make([]string, n)
	parents := make([]string, n)
	values := make([]float64, n)
	for i, node := range h.Nodes {
		ids[i] = node.ID
		labels[i] = node.Label
		parents[i] = node.Parent
		values[i] = math.Abs(node.Value.InexactFloat64())
	}
	return []map[string]interface{}{{
		"type":         string(kind),
		"ids":          ids,
		"labels":       labels,
		"parents":      parents,
		"values":       values,
		"branchvalues": "total",
	}}
}

func distributionTraces(kind models.ChartKind, d *models.Distributions) []map[string]interface{} {
	traces := make([]map[string]interface{}, 0, len(d.Groups))
	for _, g := range d.Groups {
		trace := map[string]interface{}{
			"type": string(kind),
			"name": g.Name,
		}
		switch kind {
		case models.ChartHistogram:
			trace["x"] = g.Values
			trace["opacity"] = 0.75
		case models.ChartViolin:
			trace["y"] = g.Values
			trace["box"] = map[string]interface{}{"visible": true}
			trace["meanline"] = map[string]interface{}{"visible": true}
		default:
			trace["y"] = g.Values
			trace["boxpoints"] = "outliers"
		}
		traces = append(traces, trace)
	}
	return traces
}

func sankeyTraces(g *models.SankeyGraph) []map[string]interface{} {
	source := make([]int, len(g.Links))
	target := make([]int, len(g.Links))
	value := make([]float64, len(g.Links))
	for i, l := range g.Links {
		source[i] = l.Source
		target[i] = l.Target
		value[i] = math.Abs(l.Value.InexactFloat64())
	}
	return []map[string]interface{}{{
		"type": "sankey",
		"node": map[string]interface{}{
			"label": g.Nodes,
			"pad":   15,
		},
		"link": map[string]interface{}{
			"source": source,
			"target": target,
			"value":  value,
		},
	}}
}

// scatterTraces splits the points into one trace per type, in appearance order
func scatterTraces(sp *models.ScatterPoints) []map[string]interface{} {
	type series struct {
		x    []string
		y    []float64
		text []string
	}
	var order []string
	byType := make(map[string]*series)

	for _, p := range sp.Points {
		s, ok := byType[p.Type]
		if !ok {
			s = &series{}
			byType[p.Type] = s
			order = append(order, p.Type)
		}
		s.x = append(s.x, formatDate(p.Date))
		s.y = append(s.y, p.Amount)
		s.text = append(s.text, p.Category)
	}

	traces := make([]map[string]interface{}, 0, len(order))
	for _, typ := range order {
		s := byType[typ]
		traces = append(traces, map[string]interface{}{
			"type": "scatter",
			"mode": "markers",
			"name": typ,
			"x":    s.x,
			"y":    s.y,
			"text": s.text,
		})
	}
	return traces
}

func heatmapTraces(p *models.Pivot) []map[string]interface{} {
	z := make([][]float64, len(p.Cells))
	for i, row := range p.Cells {
		z[i] = make([]float64, len(row))
		for j, v := range row {
			z[i][j] = v.InexactFloat64()
		}
	}
	return []map[string]interface{}{{
		"type":       "heatmap",
		"x":          p.Columns,
		"y":          p.Rows,
		"z":          z,
		"colorscale": "Viridis",
	}}
}

// wordCloudTraces lays the words out on a spiral, largest first, with font
// size scaled by frequency
func wordCloudTraces(wc *models.WordCloud) []map[string]interface{} {
	const (
		goldenAngle = 2.399963229728653
		minFont     = 12.0
		maxFont     = 48.0
	)

	n := len(wc.Words)
	x := make([]float64, n)
	y := make([]float64, n)
	text := make([]string, n)
	sizes := make([]float64, n)

	maxCount := 1
	if n > 0 {
		maxCount = wc.Words[0].Count
	}
	for i, w := range wc.Words {
		r := math.Sqrt(float64(i))
		theta := float64(i) * goldenAngle
		x[i] = r * math.Cos(theta)
		y[i] = r * math.Sin(theta)
		text[i] = w.Word
		sizes[i] = minFont + (maxFont-minFont)*float64(w.Count)/float64(maxCount)
	}

	return []map[string]interface{}{{
		"type":      "scatter",
		"mode":      "text",
		"x":         x,
		"y":         y,
		"text":      text,
		"textfont":  map[string]interface{}{"size": sizes},
		"hoverinfo": "text",
	}}
}

func scatter3DTraces(s *models.Scatter3D) []map[string]interface{} {
	type series struct {
		x, y []int
		z    []float64
	}
	var order []string
	byType := make(map[string]*series)

	for _, p := range s.Points {
		ser, ok := byType[p.Type]
		if !ok {
			ser = &series{}
			byType[p.Type] = ser
			order = append(order, p.Type)
		}
		ser.x = append(ser.x, p.Year)
		ser.y = append(ser.y, p.Month)
		ser.z = append(ser.z, p.Amount)
	}

	traces := make([]map[string]interface{}, 0, len(order))
	for _, typ := range order {
		ser := byType[typ]
		traces = append(traces, map[string]interface{}{
			"type":   "scatter3d",
			"mode":   "markers",
			"name":   typ,
			"x":      ser.x,
			"y":      ser.y,
			"z":      ser.z,
			"marker": map[string]interface{}{"size": 4},
		})
	}
	return traces
}

func formatDate(t time.Time) string {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format(dateLayout)
}
