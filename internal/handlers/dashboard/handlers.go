package dashboard

import (
	"bytes"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"csvdash/internal/config"
	apphttp "csvdash/internal/http"
	"csvdash/internal/models"
	"csvdash/internal/services/datasets"
	"csvdash/internal/services/metrics"
	"csvdash/internal/services/planner"
	"csvdash/internal/services/snapshot"
	"csvdash/internal/templates"
)

var (
	cfg        *config.Config
	store      *datasets.Store
	renderer   *templates.Renderer
	metricsSvc *metrics.Service
)

// Initialize sets up the dashboard package with required dependencies
func Initialize(c *config.Config, s *datasets.Store, r *templates.Renderer, m *metrics.Service) {
	cfg = c
	store = s
	renderer = r
	metricsSvc = m
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Get("/datasets/{id}", handleDashboard)
	r.Get("/datasets/{id}/kpis", handleKPIsPartial)
	r.Get("/datasets/{id}/charts", handleChartIndex)
	r.Get("/datasets/{id}/charts/{chartID}", handleChartData)
	r.Get("/datasets/{id}/snapshots/{chartID}", handleSnapshot)
	r.Get("/datasets/{id}/export.csv", handleExportCSV)
	r.Get("/datasets/{id}/export.xlsx", handleExportXLSX)
}

// loadDataset fetches the dataset named by the {id} URL parameter,
// writing the error response itself when that fails
func loadDataset(w http.ResponseWriter, r *http.Request) (*models.Dataset, bool) {
	ds, err := store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apphttp.Error(w, err)
		return nil, false
	}
	return ds, true
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}

	selected := apphttp.ParseCategories(r.URL.Query())

	pageData := map[string]interface{}{
		"Title":      ds.Name,
		"ActiveTab":  "dashboard",
		"Dataset":    ds,
		"Metrics":    metricsSvc.CalculateMetrics(ds),
		"Columns":    ds.Table.ColumnNames(),
		"Preview":    ds.Table.Head(cfg.PreviewRows),
		"RowCount":   ds.Table.Len(),
		"Missing":    ds.Caps.Missing(),
		"Categories": planner.DistinctCategories(ds),
		"Selected":   selected,
		"Charts":     chartIndex(ds),
	}
	apphttp.RenderTemplate(w, renderer, "dashboard", pageData)
}

func handleKPIsPartial(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}

	partialData := map[string]interface{}{
		"Metrics": metricsSvc.CalculateMetrics(ds),
	}
	if renderer != nil {
		renderer.RenderPartial(w, "kpis", partialData)
	} else {
		apphttp.JSONResponse(w, partialData)
	}
}

func handleChartIndex(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}
	apphttp.JSONResponse(w, chartIndex(ds))
}

// chartIndex lists the charts the dataset can produce, in display order
func chartIndex(ds *models.Dataset) []models.ChartIndexEntry {
	specs := planner.Index(ds)
	entries := make([]models.ChartIndexEntry, len(specs))
	for i, spec := range specs {
		entries[i] = models.ChartIndexEntry{
			ID:         spec.ID,
			Kind:       spec.Kind,
			Title:      spec.Title,
			Width:      spec.Width,
			Height:     spec.Height,
			Filterable: spec.Filterable,
			Snapshot:   snapshot.Supports(spec.Kind),
		}
	}
	return entries
}

func handleChartData(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}

	chartID := chi.URLParam(r, "chartID")
	opts := planner.Options{Categories: apphttp.ParseCategories(r.URL.Query())}
	spec, ok := planner.Chart(ds, chartID, opts)
	if !ok {
		http.Error(w, "Chart not available for this dataset", http.StatusNotFound)
		return
	}

	figure, err := Figure(spec)
	if err != nil {
		apphttp.Error(w, err)
		return
	}
	apphttp.JSONResponse(w, figure)
}

func handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}

	chartID := chi.URLParam(r, "chartID")
	opts := planner.Options{Categories: apphttp.ParseCategories(r.URL.Query())}
	spec, ok := planner.Chart(ds, chartID, opts)
	if !ok {
		http.Error(w, "Chart not available for this dataset", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := snapshot.Render(&buf, spec); err != nil {
		switch {
		case errors.Is(err, snapshot.ErrUnsupported), errors.Is(err, snapshot.ErrNoData):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			log.Printf("Error rendering snapshot %s: %v", chartID, err)
			http.Error(w, "Error rendering chart", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
