// Package schema resolves the well-known columns of an uploaded table and
// coerces them to their types.
package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"csvdash/internal/models"
)

// fieldAliases maps each well-known field to the header names accepted for it
// (compared case-insensitively)
var fieldAliases = map[models.Field][]string{
	models.FieldType: {
		"type", "transaction type", "kind", "flow",
	},
	models.FieldAmount: {
		"amount", "value", "transaction amount", "sum",
	},
	models.FieldCategory: {
		"category", "category name",
	},
	models.FieldDate: {
		"date", "transaction date", "posted date", "post date",
		"posting date", "trans date",
	},
	models.FieldDescription: {
		"description", "memo", "details", "narrative", "payee",
		"transaction description",
	},
	models.FieldYear:  {"year"},
	models.FieldMonth: {"month"},
}

// fieldOrder fixes resolution order so results are deterministic
var fieldOrder = []models.Field{
	models.FieldType,
	models.FieldAmount,
	models.FieldCategory,
	models.FieldDate,
	models.FieldDescription,
	models.FieldYear,
	models.FieldMonth,
}

// dateFormats are tried in order when coercing the date column
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"20060102",
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// normalizeFieldName maps a header to the well-known field it names, if any
func normalizeFieldName(col string) (models.Field, bool) {
	col = strings.ToLower(strings.TrimSpace(col))
	for _, field := range fieldOrder {
		for _, alias := range fieldAliases[field] {
			if col == alias {
				return field, true
			}
		}
	}
	return "", false
}

// ResolveColumns builds the capability set for a table. A header that is
// exactly a field's name wins; otherwise the first header matching one of
// the field's aliases does.
func ResolveColumns(t *models.Table) models.Capabilities {
	caps := models.Capabilities{Columns: make(map[models.Field]string)}

	for _, col := range t.Columns {
		field := models.Field(strings.ToLower(strings.TrimSpace(col.Name)))
		if _, known := fieldAliases[field]; !known {
			continue
		}
		if _, exists := caps.Columns[field]; !exists {
			caps.Columns[field] = col.Name
		}
	}

	for _, col := range t.Columns {
		field, ok := normalizeFieldName(col.Name)
		if !ok {
			continue
		}
		if _, exists := caps.Columns[field]; !exists {
			caps.Columns[field] = col.Name
		}
	}

	_, caps.HasType = caps.Columns[models.FieldType]
	_, caps.HasAmount = caps.Columns[models.FieldAmount]
	_, caps.HasCategory = caps.Columns[models.FieldCategory]
	_, caps.HasDate = caps.Columns[models.FieldDate]
	_, caps.HasDescription = caps.Columns[models.FieldDescription]
	caps.HasYearMonth = caps.Has(models.FieldYear, models.FieldMonth) && caps.HasDate

	return caps
}

// Normalize coerces the date and amount columns and returns the resulting
// dataset. Values that fail to coerce become missing; nothing else changes.
// Normalizing an already normalized table is a no-op.
func Normalize(t *models.Table) *models.Dataset {
	caps := ResolveColumns(t)

	if name, ok := caps.Columns[models.FieldDate]; ok {
		t = coerceColumn(t, name, models.KindTime, coerceDates)
	}
	if name, ok := caps.Columns[models.FieldAmount]; ok {
		t = coerceColumn(t, name, models.KindNumber, coerceAmounts)
	}

	return &models.Dataset{Table: t, Caps: caps}
}

// coerceColumn swaps the named column for its coerced version unless it
// already has the target kind
func coerceColumn(t *models.Table, name string, kind models.ColumnKind, coerce func(models.Column) models.Column) *models.Table {
	for i, col := range t.Columns {
		if col.Name != name {
			continue
		}
		if col.Kind == kind {
			return t
		}
		return t.ReplaceColumn(i, coerce(col))
	}
	return t
}

// coerceDates parses every cell as a timestamp. Raw values are rewritten to a
// single layout so export is uniform.
func coerceDates(col models.Column) models.Column {
	cells := make([]models.Cell, len(col.Cells))
	hasClock := false

	for i, c := range col.Cells {
		if !c.Valid {
			cells[i] = models.Cell{}
			continue
		}
		ts := ParseDate(strings.TrimSpace(c.Raw))
		if ts.IsZero() {
			// Unparseable dates become gaps, not errors
			cells[i] = models.Cell{}
			continue
		}
		if ts.Hour() != 0 || ts.Minute() != 0 || ts.Second() != 0 {
			hasClock = true
		}
		cells[i] = models.Cell{Time: ts, Valid: true}
	}

	layout := dateLayout
	if hasClock {
		layout = dateTimeLayout
	}
	for i := range cells {
		if cells[i].Valid {
			cells[i].Raw = cells[i].Time.Format(layout)
		}
	}

	return models.Column{Name: col.Name, Kind: models.KindTime, Cells: cells}
}

// coerceAmounts parses every cell as a number, accepting currency formatting
func coerceAmounts(col models.Column) models.Column {
	cells := make([]models.Cell, len(col.Cells))

	for i, c := range col.Cells {
		if !c.Valid {
			cells[i] = models.Cell{}
			continue
		}
		if col.Kind == models.KindNumber || col.Kind == models.KindInteger {
			cells[i] = c
			continue
		}
		amount, ok := ParseAmount(c.Raw)
		if !ok {
			cells[i] = models.Cell{}
			continue
		}
		cells[i] = models.Cell{Raw: amount.String(), Num: amount, Valid: true}
	}

	return models.Column{Name: col.Name, Kind: models.KindNumber, Cells: cells}
}

// ParseDate tries multiple date formats, returning the zero time on failure
func ParseDate(s string) time.Time {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseAmount parses an amount string, handling currency symbols,
// thousands separators and parentheses
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"$", "€", "£", "¥", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	// Handle parentheses for negative numbers: (100.00) -> -100.00
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// WithYearMonth appends integer year and month columns extracted from the
// date column. Datasets without a date column are returned unchanged.
func WithYearMonth(ds *models.Dataset) *models.Dataset {
	name, ok := ds.Caps.Columns[models.FieldDate]
	if !ok {
		return ds
	}
	dateCol, ok := ds.Table.Column(name)
	if !ok || dateCol.Kind != models.KindTime {
		return ds
	}

	years := make([]models.Cell, len(dateCol.Cells))
	months := make([]models.Cell, len(dateCol.Cells))
	for i, c := range dateCol.Cells {
		if !c.Valid {
			continue
		}
		years[i] = intCell(c.Time.Year())
		months[i] = intCell(int(c.Time.Month()))
	}

	table := ds.Table.WithColumns(
		models.Column{Name: string(models.FieldYear), Kind: models.KindInteger, Cells: years},
		models.Column{Name: string(models.FieldMonth), Kind: models.KindInteger, Cells: months},
	)

	caps := ResolveColumns(table)
	// The derived columns are authoritative over any alias match
	caps.Columns[models.FieldYear] = string(models.FieldYear)
	caps.Columns[models.FieldMonth] = string(models.FieldMonth)
	caps.HasYearMonth = true

	return &models.Dataset{
		ID:         ds.ID,
		Name:       ds.Name,
		UploadedAt: ds.UploadedAt,
		Table:      table,
		Caps:       caps,
	}
}

func intCell(v int) models.Cell {
	return models.Cell{
		Raw:   strconv.Itoa(v),
		Num:   decimal.NewFromInt(int64(v)),
		Valid: true,
	}
}
