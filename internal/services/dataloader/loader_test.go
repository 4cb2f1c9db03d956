package dataloader

import (
	"errors"
	"strings"
	"testing"

	"csvdash/internal/models"
)

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		input    string
		expected rune
	}{
		{"date,type,amount\n2024-01-01,income,100", ','},
		{"date;type;amount\n2024-01-01;income;100", ';'},
		{"date\ttype\tamount\n", '\t'},
		{"date|type|amount\n", '|'},
		{`"a;b",c,d` + "\n", ','},
		{"single\n1\n", ','},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			result := DetectDelimiter([]byte(tt.input))
			if result != tt.expected {
				t.Errorf("DetectDelimiter(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDedupeHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   []string
	}{
		{
			"repeats and blanks",
			[]string{"amount", "", "amount", " type ", "amount"},
			[]string{"amount", "Unnamed: 1", "amount.1", "type", "amount.2"},
		},
		{
			"suffix already in header",
			[]string{"a", "a", "a.1"},
			[]string{"a", "a.2", "a.1"},
		},
		{
			"repeated suffixed name",
			[]string{"a.1", "a", "a.1", "a"},
			[]string{"a.1", "a", "a.1.1", "a.2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dedupeHeader(tt.header)
			seen := make(map[string]bool)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("header[%d] = %q, want %q", i, got[i], tt.want[i])
				}
				if seen[got[i]] {
					t.Errorf("header[%d] = %q is not unique", i, got[i])
				}
				seen[got[i]] = true
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		csvContent    string
		expectedRows  int
		expectedCols  []string
		expectedKinds map[string]models.ColumnKind
		expectError   bool
		errorContains string
	}{
		{
			name: "standard format",
			csvContent: `type,amount,category,date
income,100,salary,2024-01-01
expense,40,rent,2024-01-02`,
			expectedRows: 2,
			expectedCols: []string{"type", "amount", "category", "date"},
			expectedKinds: map[string]models.ColumnKind{
				"type":   models.KindText,
				"amount": models.KindNumber,
				"date":   models.KindText,
			},
		},
		{
			name: "extra columns pass through",
			csvContent: `type,amount,Balance,Account
expense,12.50,1000,checking`,
			expectedRows: 1,
			expectedCols: []string{"type", "amount", "Balance", "Account"},
			expectedKinds: map[string]models.ColumnKind{
				"Balance": models.KindNumber,
				"Account": models.KindText,
			},
		},
		{
			name: "semicolon delimited",
			csvContent: `type;amount
expense;3.5`,
			expectedRows: 1,
			expectedCols: []string{"type", "amount"},
		},
		{
			name: "missing values keep column numeric",
			csvContent: `type,amount
expense,
income,NaN
expense,7`,
			expectedRows: 3,
			expectedKinds: map[string]models.ColumnKind{
				"amount": models.KindNumber,
			},
		},
		{
			name: "short rows are padded",
			csvContent: `type,amount,category
expense,5`,
			expectedRows: 1,
		},
		{
			name:         "byte order mark is stripped",
			csvContent:   "\xef\xbb\xbftype,amount\nincome,1",
			expectedRows: 1,
			expectedCols: []string{"type", "amount"},
		},
		{
			name:          "empty input",
			csvContent:    "   \n",
			expectError:   true,
			errorContains: "empty",
		},
		{
			name: "too many fields",
			csvContent: `type,amount
expense,5,extra`,
			expectError:   true,
			errorContains: "more fields",
		},
		{
			name:          "bare quote",
			csvContent:    "type,amount\nexp\"ense,5\n",
			expectError:   true,
			errorContains: "line 2",
		},
		{
			name:          "not utf-8",
			csvContent:    "type,amount\n\xff\xfe,1\n",
			expectError:   true,
			errorContains: "UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(strings.NewReader(tt.csvContent))

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorContains)
				}
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("expected *ParseError, got %T", err)
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if table.Len() != tt.expectedRows {
				t.Errorf("got %d rows, want %d", table.Len(), tt.expectedRows)
			}

			if tt.expectedCols != nil {
				names := table.ColumnNames()
				if strings.Join(names, ",") != strings.Join(tt.expectedCols, ",") {
					t.Errorf("columns = %v, want %v", names, tt.expectedCols)
				}
			}

			for name, kind := range tt.expectedKinds {
				col, ok := table.Column(name)
				if !ok {
					t.Errorf("column %q not found", name)
					continue
				}
				if col.Kind != kind {
					t.Errorf("column %q kind = %s, want %s", name, col.Kind, kind)
				}
			}
		})
	}
}

func TestParseMissingCells(t *testing.T) {
	table, err := Parse(strings.NewReader("type,amount,category\nexpense,5\nincome,NA,salary\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	category, _ := table.Column("category")
	if category.Cells[0].Valid {
		t.Error("padded cell should be missing")
	}
	if !category.Cells[1].Valid || category.Cells[1].Raw != "salary" {
		t.Errorf("category[1] = %+v, want salary", category.Cells[1])
	}

	amount, _ := table.Column("amount")
	if amount.Cells[1].Valid {
		t.Error("NA amount should be missing")
	}
	if got := amount.Cells[0].Num.String(); got != "5" {
		t.Errorf("amount[0] = %s, want 5", got)
	}
	if amount.MissingCount() != 1 {
		t.Errorf("MissingCount() = %d, want 1", amount.MissingCount())
	}
}

func TestParseMaxRows(t *testing.T) {
	table, err := ParseWithOptions(strings.NewReader("a,b\n1,2\n3,4\n5,6\n"), Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("got %d rows, want 2", table.Len())
	}
}
