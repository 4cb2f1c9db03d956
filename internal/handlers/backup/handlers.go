package backup

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"csvdash/internal/config"
	apphttp "csvdash/internal/http"
	"csvdash/internal/services/datasets"
	"csvdash/internal/services/export"
	"csvdash/internal/version"
)

// plotlyURL is the CDN build cached by HandlePlotly
const plotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var (
	cfg   *config.Config
	store *datasets.Store
)

// Initialize sets up the backup package with required dependencies
func Initialize(c *config.Config, s *datasets.Store) {
	cfg = c
	store = s
}

// RegisterRoutes registers backup and service routes
func RegisterRoutes(r chi.Router) {
	r.Get("/api/health", HandleHealth)
	r.Get("/api/version", HandleVersion)
	r.Get("/backup", HandleBackup)
	r.Post("/backup/restore", HandleRestore)
	r.Get("/plotly.min.js", HandlePlotly)
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	apphttp.JSONResponse(w, map[string]string{"status": "ok"})
}

func HandleVersion(w http.ResponseWriter, r *http.Request) {
	apphttp.JSONResponse(w, version.Get())
}

// HandleBackup downloads every dataset, normalized and exported as CSV,
// in one zip archive
func HandleBackup(w http.ResponseWriter, r *http.Request) {
	infos, err := store.List()
	if err != nil {
		apphttp.Error(w, err)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, info := range infos {
		ds, err := store.Load(r.Context(), info.ID)
		if err != nil {
			apphttp.Error(w, err)
			return
		}

		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entryName(info.Name, info.ID),
			Method:   zip.Deflate,
			Modified: info.UploadedAt,
		})
		if err != nil {
			apphttp.Error(w, fmt.Errorf("failed to add %s to backup: %w", info.ID, err))
			return
		}
		if err := export.WriteCSV(f, ds.Table); err != nil {
			apphttp.Error(w, fmt.Errorf("failed to export %s: %w", info.ID, err))
			return
		}
	}
	if err := zw.Close(); err != nil {
		apphttp.Error(w, fmt.Errorf("failed to finish backup: %w", err))
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("csvdash_backup_%s.zip", timestamp)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Error writing backup: %v", err)
		return
	}
	log.Printf("Backup created: %d datasets", len(infos))
}

// entryName is the archive file name of one dataset
func entryName(name, id string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "dataset"
	}
	return fmt.Sprintf("%s_%s.csv", base, id)
}

// HandleRestore stores every CSV entry of an uploaded zip as a new dataset.
// Entries that do not parse are skipped.
func HandleRestore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
		http.Error(w, "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error reading file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		http.Error(w, "Only ZIP backup files are allowed", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	zipReader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		http.Error(w, "Invalid ZIP file", http.StatusBadRequest)
		return
	}

	restoredCount := 0
	for _, zipFile := range zipReader.File {
		if zipFile.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(zipFile.Name), ".csv") {
			continue
		}

		data, err := readEntry(zipFile, cfg.MaxUploadBytes)
		if err != nil {
			log.Printf("Skipping zip entry %s: %v", zipFile.Name, err)
			continue
		}

		ds, err := store.Save(filepath.Base(zipFile.Name), data)
		if err != nil {
			log.Printf("Skipping zip entry %s: %v", zipFile.Name, err)
			continue
		}

		restoredCount++
		log.Printf("Restored %s as dataset %s", zipFile.Name, ds.ID)
	}

	if restoredCount == 0 {
		http.Error(w, "No valid CSV files found in backup", http.StatusBadRequest)
		return
	}

	log.Printf("Restore complete: %d datasets restored", restoredCount)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Restored %d datasets", restoredCount)
}

// errEntryTooLarge marks a backup entry that inflates past the upload limit
var errEntryTooLarge = errors.New("entry exceeds upload size limit")

// readEntry inflates one archive entry, reading at most limit bytes
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errEntryTooLarge
	}
	return data, nil
}

// HandlePlotly serves plotly.min.js from the data directory cache, fetching
// it from the CDN on first use
func HandlePlotly(w http.ResponseWriter, r *http.Request) {
	cachePath := filepath.Join(cfg.DataDirectory, "cache", "plotly.min.js")

	if data, err := os.ReadFile(cachePath); err == nil {
		writeScript(w, data)
		return
	}

	log.Println("Fetching plotly.min.js from CDN...")
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, plotlyURL, nil)
	if err != nil {
		http.Error(w, "Failed to build plotly request: "+err.Error(), http.StatusInternalServerError)
		return
	}
	req.Header.Set("User-Agent", version.Get().UserAgent())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(w, "Failed to fetch plotly: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, "CDN returned status: "+resp.Status, http.StatusBadGateway)
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "Failed to read plotly response: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		log.Printf("Warning: could not create cache directory: %v", err)
	}
	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		log.Printf("Warning: could not cache plotly.min.js: %v", err)
	} else {
		log.Println("Cached plotly.min.js for future requests")
	}

	writeScript(w, data)
}

func writeScript(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}
