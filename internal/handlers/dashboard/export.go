package dashboard

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	apphttp "csvdash/internal/http"
	"csvdash/internal/services/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, ds.Table); err != nil {
		apphttp.Error(w, err)
		return
	}

	filename := cfg.ExportFilename
	if filename == "" {
		filename = export.CSVFilename
	}
	writeAttachment(w, "text/csv; charset=utf-8", filename, buf.Bytes())
	log.Printf("Exported dataset %s as CSV", ds.ID)
}

func handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	ds, ok := loadDataset(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, ds); err != nil {
		apphttp.Error(w, err)
		return
	}

	filename := export.XLSXFilename
	if cfg.ExportFilename != "" {
		filename = strings.TrimSuffix(cfg.ExportFilename, filepath.Ext(cfg.ExportFilename)) + ".xlsx"
	}
	writeAttachment(w, xlsxContentType, filename, buf.Bytes())
	log.Printf("Exported dataset %s as XLSX", ds.ID)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(data)
}
