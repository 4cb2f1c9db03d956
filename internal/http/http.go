package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"csvdash/internal/services/dataloader"
	"csvdash/internal/services/datasets"
	"csvdash/internal/services/storage"
	"csvdash/internal/templates"
)

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, renderer *templates.Renderer, templateName string, data map[string]interface{}) {
	if renderer != nil {
		renderer.Render(w, templateName, data)
	} else {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
	}
}

// RenderPartial renders a partial template with data
func RenderPartial(w http.ResponseWriter, renderer *templates.Renderer, partialName string, data map[string]interface{}) {
	if renderer != nil {
		renderer.RenderPartial(w, partialName, data)
	} else {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<div><!-- Partial " + partialName + " not loaded --></div>"))
	}
}

// JSONResponse writes v as a JSON body
func JSONResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// ErrorResponse sends an error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	log.Printf("Error: %s (status %d)", message, statusCode)
	http.Error(w, message, statusCode)
}

// StatusFor maps a service error to its HTTP status
func StatusFor(err error) int {
	var parseErr *dataloader.ParseError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, datasets.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// Error sends err with the status StatusFor picks. Internal errors are
// logged in full but reported generically.
func Error(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error: %v", err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	ErrorResponse(w, err.Error(), status)
}

// ParseCategories reads the category filter selection from repeated
// ?category=a&category=b parameters. Values are trimmed and blanks dropped;
// a value is never split, so categories may contain commas.
func ParseCategories(query url.Values) []string {
	var selected []string
	for _, v := range query["category"] {
		if c := strings.TrimSpace(v); c != "" {
			selected = append(selected, c)
		}
	}
	return selected
}
