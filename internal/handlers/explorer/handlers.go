package explorer

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"csvdash/internal/config"
	apphttp "csvdash/internal/http"
	"csvdash/internal/services/datasets"
	"csvdash/internal/templates"
)

var (
	cfg      *config.Config
	store    *datasets.Store
	renderer *templates.Renderer
)

// Initialize sets up the explorer package with required dependencies
func Initialize(c *config.Config, s *datasets.Store, r *templates.Renderer) {
	cfg = c
	store = s
	renderer = r
}

// RegisterRoutes registers the upload page and dataset file manager routes
func RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/upload", http.StatusTemporaryRedirect)
	})
	r.Get("/upload", handleUploadPage)
	r.Post("/upload", handleUpload)
	r.Get("/datasets", handleDatasetList)
	r.Delete("/datasets/{id}", handleDatasetDelete)
}

func handleUploadPage(w http.ResponseWriter, r *http.Request) {
	infos, err := store.List()
	if err != nil {
		apphttp.Error(w, err)
		return
	}

	pageData := map[string]interface{}{
		"Title":          "Upload",
		"ActiveTab":      "upload",
		"Datasets":       infos,
		"MaxUploadBytes": cfg.MaxUploadBytes,
	}
	apphttp.RenderTemplate(w, renderer, "upload", pageData)
}

func handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid upload form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		http.Error(w, "Only CSV files are allowed", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	ds, err := store.Save(header.Filename, data)
	if err != nil {
		apphttp.Error(w, err)
		return
	}

	log.Printf("Uploaded file: %s as dataset %s", header.Filename, ds.ID)
	http.Redirect(w, r, "/datasets/"+ds.ID, http.StatusSeeOther)
}

func handleDatasetList(w http.ResponseWriter, r *http.Request) {
	infos, err := store.List()
	if err != nil {
		apphttp.Error(w, err)
		return
	}
	renderDatasetList(w, r, infos)
}

func handleDatasetDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := store.Delete(id); err != nil {
		apphttp.Error(w, err)
		return
	}

	infos, err := store.List()
	if err != nil {
		apphttp.Error(w, err)
		return
	}
	renderDatasetList(w, r, infos)
}

// renderDatasetList answers with JSON when asked for it, the HTML partial otherwise
func renderDatasetList(w http.ResponseWriter, r *http.Request, infos interface{}) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") || renderer == nil {
		apphttp.JSONResponse(w, infos)
		return
	}
	apphttp.RenderPartial(w, renderer, "dataset-list", map[string]interface{}{
		"Datasets": infos,
	})
}
