package templates

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// templateDirs are scanned in order for *.html files
var templateDirs = []string{"layouts", "pages", "partials"}

var (
	lineNumberRe   = regexp.MustCompile(`:(\d+):`)
	templateCallRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)
)

// Renderer handles template rendering
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
	debug     bool
	baseDir   string
}

// New creates a new template renderer
func New(templateDir string, debug bool) (*Renderer, error) {
	r := &Renderer{
		debug:   debug,
		baseDir: templateDir,
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// getFuncMap returns the template function map
func getFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatMoney":    formatMoney,
		"formatNumber":   formatNumber,
		"formatPercent":  formatPercent,
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"formatBytes":    formatBytes,
		"add":            add,
		"dict":           dict,
		"toJSON":         toJSON,
		"lower":          strings.ToLower,
		"join":           strings.Join,
		"contains":       contains,
		"colorClass":     colorClass,
	}
}

// loadTemplates parses all templates with strict validation
func (r *Renderer) loadTemplates() error {
	files, err := r.collectFiles()
	if err != nil {
		return err
	}

	tmpl := template.New("").Funcs(getFuncMap())
	sources := make(map[string]string, len(files))

	var parseErrors []string
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("  %s: failed to read: %v", file, err))
			continue
		}
		sources[file] = string(content)

		if _, err := tmpl.New(filepath.Base(file)).Parse(string(content)); err != nil {
			parseErrors = append(parseErrors, formatTemplateError(file, string(content), err))
		}
	}

	if len(parseErrors) > 0 {
		logBlock("TEMPLATE PARSING ERRORS", parseErrors)
		return fmt.Errorf("template parsing failed with %d error(s)", len(parseErrors))
	}

	if err := validateTemplateReferences(tmpl, sources); err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	log.Printf("Templates loaded successfully: %d files", len(files))
	return nil
}

func (r *Renderer) collectFiles() ([]string, error) {
	var files []string
	for _, subdir := range templateDirs {
		pattern := filepath.Join(r.baseDir, subdir, "*.html")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("error globbing %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no template files found in %s", r.baseDir)
	}
	return files, nil
}

// logBlock prints a banner-delimited list of problems
func logBlock(title string, lines []string) {
	rule := strings.Repeat("=", 60)
	log.Printf("%s", rule)
	log.Printf("%s", title)
	log.Printf("%s", rule)
	for _, l := range lines {
		log.Printf("%s", l)
	}
	log.Printf("%s", rule)
}

// formatTemplateError formats a template error with file context
func formatTemplateError(file, content string, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n  File: %s\n", file)

	errStr := err.Error()
	lineNum := extractLineNumber(errStr)
	if lineNum <= 0 {
		fmt.Fprintf(&sb, "  Error: %s\n", errStr)
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Line: %d\n", lineNum)
	fmt.Fprintf(&sb, "  Error: %s\n", errStr)
	sb.WriteString("  Context:\n")

	lines := strings.Split(content, "\n")
	start := max(lineNum-3, 0)
	end := min(lineNum+2, len(lines))
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == lineNum {
			marker = ">>>"
		}
		fmt.Fprintf(&sb, "    %s %4d | %s\n", marker, i+1, lines[i])
	}

	return sb.String()
}

// extractLineNumber tries to extract a line number from a template error
func extractLineNumber(errStr string) int {
	matches := lineNumberRe.FindStringSubmatch(errStr)
	if len(matches) < 2 {
		return 0
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return n
}

// validateTemplateReferences checks that every {{template "name"}} call
// names a defined template
func validateTemplateReferences(tmpl *template.Template, sources map[string]string) error {
	defined := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			defined[t.Name()] = true
		}
	}

	var refErrors []string
	for file, content := range sources {
		scanner := bufio.NewScanner(strings.NewReader(content))
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			for _, match := range templateCallRe.FindAllStringSubmatch(line, -1) {
				if !defined[match[1]] {
					refErrors = append(refErrors, fmt.Sprintf(
						"  %s:%d: undefined template %q\n    Line: %s",
						file, lineNum, match[1], strings.TrimSpace(line),
					))
				}
			}
		}
	}

	if len(refErrors) > 0 {
		logBlock("UNDEFINED TEMPLATE REFERENCES", refErrors)
		return fmt.Errorf("found %d undefined template reference(s)", len(refErrors))
	}
	return nil
}

// Reload reloads templates (useful for development)
func (r *Renderer) Reload() error {
	return r.loadTemplates()
}

// Has reports whether a template with the given name is defined
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.Lookup(name) != nil
}

// Render renders a full page
func (r *Renderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	return r.render(w, name, data, "template")
}

// RenderPartial renders a fragment (no layout)
func (r *Renderer) RenderPartial(w http.ResponseWriter, name string, data interface{}) error {
	return r.render(w, name, data, "partial")
}

// render executes into a buffer first so a failing template does not leave
// a half-written page behind a 200 status
func (r *Renderer) render(w http.ResponseWriter, name string, data interface{}, what string) error {
	if r.debug {
		if err := r.loadTemplates(); err != nil {
			log.Printf("Error reloading templates: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := r.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Error rendering %s %s: %v", what, name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// ExecuteTemplate executes a template to a writer
func (r *Renderer) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	return tmpl.ExecuteTemplate(w, name, data)
}

// Template functions

// groupThousands inserts commas into a string of digits
func groupThousands(digits string) string {
	var sb strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteRune(',')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	intPart, frac, _ := strings.Cut(fmt.Sprintf("%.2f", v), ".")
	return sign + "$" + groupThousands(intPart) + "." + frac
}

func formatNumber(v interface{}) string {
	f := toFloat(v)
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	return sign + groupThousands(fmt.Sprintf("%.0f", f))
}

func formatPercent(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func add(a, b interface{}) interface{} {
	// If both are ints, return int to preserve type for comparisons
	if ai, ok := a.(int); ok {
		if bi, ok := b.(int); ok {
			return ai + bi
		}
	}
	return toFloat(a) + toFloat(b)
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case float32:
		return float64(val)
	default:
		return 0
	}
}

// dict creates a map from key-value pairs
func dict(values ...interface{}) map[string]interface{} {
	if len(values)%2 != 0 {
		return nil
	}
	result := make(map[string]interface{})
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		result[key] = values[i+1]
	}
	return result
}

// toJSON marshals v for embedding in a script block
func toJSON(v interface{}) template.JS {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling template value: %v", err)
		return template.JS("null")
	}
	return template.JS(data)
}

// contains reports whether list holds s
func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func colorClass(v float64) string {
	if v > 0 {
		return "text-green-600 dark:text-green-400"
	} else if v < 0 {
		return "text-red-600 dark:text-red-400"
	}
	return "text-gray-600 dark:text-gray-400"
}
