package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ColumnKind is the value type shared by every cell of a column
type ColumnKind string

const (
	KindText    ColumnKind = "text"
	KindNumber  ColumnKind = "number"
	KindTime    ColumnKind = "time"
	KindInteger ColumnKind = "integer"
)

// Cell is a single table value. Raw is what gets written back on export.
type Cell struct {
	Raw   string          `json:"raw"`
	Num   decimal.Decimal `json:"num,omitempty"`
	Time  time.Time       `json:"time,omitempty"`
	Valid bool            `json:"valid"`
}

// Float returns the numeric value as a float64 (0 when missing)
func (c Cell) Float() float64 {
	if !c.Valid {
		return 0
	}
	return c.Num.InexactFloat64()
}

// Column is a named, homogeneously typed sequence of cells
type Column struct {
	Name  string     `json:"name"`
	Kind  ColumnKind `json:"kind"`
	Cells []Cell     `json:"cells"`
}

// MissingCount returns the number of missing cells in the column
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if !cell.Valid {
			n++
		}
	}
	return n
}

// Table is an ordered set of columns sharing one row count.
// Tables are treated as immutable once built.
type Table struct {
	Columns []Column `json:"columns"`
	rows    int
}

// NewTable creates a table from columns. All columns must have the same length.
func NewTable(columns []Column) *Table {
	t := &Table{Columns: columns}
	if len(columns) > 0 {
		t.rows = len(columns[0].Cells)
	}
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.rows
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.Columns)
}

// ColumnNames returns the column names in order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the exact given name
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether a column with the exact given name exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// WithColumns returns a new table with the given columns appended.
// A column whose name already exists replaces the existing one in place.
func (t *Table) WithColumns(extra ...Column) *Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)

	for _, c := range extra {
		replaced := false
		for i := range cols {
			if cols[i].Name == c.Name {
				cols[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			cols = append(cols, c)
		}
	}

	return &Table{Columns: cols, rows: t.rows}
}

// ReplaceColumn returns a new table where the column at idx is swapped for c
func (t *Table) ReplaceColumn(idx int, c Column) *Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	cols[idx] = c
	return &Table{Columns: cols, rows: t.rows}
}

// Row returns the raw values of row i in column order
func (t *Table) Row(i int) []string {
	row := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		if c.Cells[i].Valid {
			row[j] = c.Cells[i].Raw
		}
	}
	return row
}

// Head returns the raw values of at most n rows, for previews
func (t *Table) Head(n int) [][]string {
	if n > t.rows || n < 0 {
		n = t.rows
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Row(i)
	}
	return rows
}

// Field identifies one of the well-known record fields
type Field string

const (
	FieldType        Field = "type"
	FieldAmount      Field = "amount"
	FieldCategory    Field = "category"
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldYear        Field = "year"
	FieldMonth       Field = "month"
)

// Capabilities records which well-known fields a table carries and
// the actual column name each one resolved to
type Capabilities struct {
	HasType        bool `json:"has_type"`
	HasAmount      bool `json:"has_amount"`
	HasCategory    bool `json:"has_category"`
	HasDate        bool `json:"has_date"`
	HasDescription bool `json:"has_description"`
	HasYearMonth   bool `json:"has_year_month"`

	Columns map[Field]string `json:"columns"`
}

// Has reports whether all of the given fields are present
func (c Capabilities) Has(fields ...Field) bool {
	for _, f := range fields {
		if _, ok := c.Columns[f]; !ok {
			return false
		}
	}
	return true
}

// ColumnFor returns the resolved column name for a field
func (c Capabilities) ColumnFor(f Field) string {
	return c.Columns[f]
}

// Missing returns the well-known fields that are absent, for display
func (c Capabilities) Missing() []string {
	var missing []string
	for _, f := range []Field{FieldType, FieldAmount, FieldCategory, FieldDate, FieldDescription} {
		if _, ok := c.Columns[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	return missing
}

// Record is one row projected onto the well-known fields
type Record struct {
	Row         int
	Type        string
	HasType     bool
	Amount      decimal.Decimal
	HasAmount   bool
	Category    string
	HasCategory bool
	Date        time.Time
	HasDate     bool
	Description string
	Year        int
	Month       int
}

// Dataset is a normalized table together with its capabilities.
// It is shared read-only between every chart computed from it.
type Dataset struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	UploadedAt time.Time    `json:"uploaded_at"`
	Table      *Table       `json:"-"`
	Caps       Capabilities `json:"capabilities"`
}

// Records projects every row onto the well-known fields
func (d *Dataset) Records() []Record {
	t := d.Table
	records := make([]Record, t.Len())

	col := func(f Field) *Column {
		name, ok := d.Caps.Columns[f]
		if !ok {
			return nil
		}
		c, _ := t.Column(name)
		return c
	}

	typeCol := col(FieldType)
	amountCol := col(FieldAmount)
	categoryCol := col(FieldCategory)
	dateCol := col(FieldDate)
	descCol := col(FieldDescription)
	yearCol := col(FieldYear)
	monthCol := col(FieldMonth)

	for i := range records {
		r := Record{Row: i}
		if typeCol != nil && typeCol.Cells[i].Valid {
			r.Type = strings.TrimSpace(typeCol.Cells[i].Raw)
			r.HasType = true
		}
		if amountCol != nil && amountCol.Cells[i].Valid {
			r.Amount = amountCol.Cells[i].Num
			r.HasAmount = true
		}
		if categoryCol != nil && categoryCol.Cells[i].Valid {
			r.Category = strings.TrimSpace(categoryCol.Cells[i].Raw)
			r.HasCategory = true
		}
		if dateCol != nil && dateCol.Cells[i].Valid {
			r.Date = dateCol.Cells[i].Time
			r.HasDate = true
		}
		if descCol != nil && descCol.Cells[i].Valid {
			r.Description = descCol.Cells[i].Raw
		}
		if yearCol != nil && yearCol.Cells[i].Valid {
			r.Year = int(yearCol.Cells[i].Num.IntPart())
		}
		if monthCol != nil && monthCol.Cells[i].Valid {
			r.Month = int(monthCol.Cells[i].Num.IntPart())
		}
		records[i] = r
	}

	return records
}

// DatasetInfo describes a stored upload
type DatasetInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}
