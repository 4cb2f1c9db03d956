package dataloader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"csvdash/internal/models"
)

// ParseError reports input that is not usable delimited text.
// It is fatal for the upload it came from.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyInput  = errors.New("input is empty")
	ErrNoHeader    = errors.New("missing header row")
	ErrNotUTF8     = errors.New("input is not valid UTF-8")
	ErrTooManyCols = errors.New("row has more fields than the header")
)

// candidateDelimiters are tried in order; ties go to the earlier one
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// missingValues are raw values read as missing, matching common CSV exports
var missingValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"#N/A": true,
	"<NA>": true,
	"NaT":  true,
	"-NaN": true,
	"-nan": true,
	"#NA":  true,
}

// Options controls parsing
type Options struct {
	// Delimiter overrides detection when non-zero
	Delimiter rune
	// MaxRows limits data rows read; 0 means unlimited
	MaxRows int
}

// Parse reads delimited text with a header row into a table with
// text and number columns. Unknown columns are kept as-is.
func Parse(r io.Reader) (*models.Table, error) {
	return ParseWithOptions(r, Options{})
}

// ParseWithOptions is Parse with explicit options
func ParseWithOptions(r io.Reader, opts Options) (*models.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("error reading input: %w", err)}
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Err: ErrEmptyInput}
	}
	if !utf8.Valid(data) {
		return nil, &ParseError{Err: ErrNotUTF8}
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1 // Row width is checked against the header below
	reader.TrimLeadingSpace = true

	// Read header
	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: ErrNoHeader}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: fmt.Errorf("error reading header: %w", err)}
	}
	header = dedupeHeader(header)

	raw := make([][]string, len(header))
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, &ParseError{Line: lineNum, Err: err}
		}

		if len(record) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, &ParseError{
				Line: line,
				Err:  fmt.Errorf("%w: expected %d fields, saw %d", ErrTooManyCols, len(header), len(record)),
			}
		}

		for i := range header {
			if i < len(record) {
				raw[i] = append(raw[i], record[i])
			} else {
				raw[i] = append(raw[i], "")
			}
		}

		if opts.MaxRows > 0 && len(raw[0]) >= opts.MaxRows {
			break
		}
	}

	columns := make([]models.Column, len(header))
	for i, name := range header {
		columns[i] = buildColumn(name, raw[i])
	}

	return models.NewTable(columns), nil
}

// DetectDelimiter picks the candidate delimiter that occurs most often
// outside quotes on the header line
func DetectDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	counts := make(map[rune]int)
	inQuotes := false
	for _, c := range string(line) {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, d := range candidateDelimiters {
			if c == d {
				counts[d]++
			}
		}
	}

	best := ','
	bestCount := 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}

// dedupeHeader names blank columns and suffixes repeated names. A suffix
// never reuses a name already present in the header.
func dedupeHeader(header []string) []string {
	taken := make(map[string]bool, len(header))
	for _, col := range header {
		taken[strings.TrimSpace(col)] = true
	}

	out := make([]string, len(header))
	emitted := make(map[string]bool, len(header))
	next := make(map[string]int)
	for i, col := range header {
		name := strings.TrimSpace(col)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if emitted[name] {
			base := name
			n := next[base]
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if !taken[name] && !emitted[name] {
					break
				}
			}
			next[base] = n
		}
		emitted[name] = true
		out[i] = name
	}
	return out
}

// buildColumn infers the column kind. A column is numeric when every
// present value parses as a number.
func buildColumn(name string, values []string) models.Column {
	cells := make([]models.Cell, len(values))
	numeric := true
	present := 0

	for i, v := range values {
		cell := models.Cell{Raw: v}
		if !IsMissing(v) {
			cell.Valid = true
			present++
			if numeric {
				if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
					cell.Num = d
				} else {
					numeric = false
				}
			}
		}
		cells[i] = cell
	}

	kind := models.KindText
	if numeric && present > 0 {
		kind = models.KindNumber
	} else {
		// Drop partial numeric parses from a text column
		for i := range cells {
			cells[i].Num = decimal.Decimal{}
		}
	}

	return models.Column{Name: name, Kind: kind, Cells: cells}
}

// IsMissing reports whether a raw value is read as missing
func IsMissing(v string) bool {
	return missingValues[strings.TrimSpace(v)]
}
