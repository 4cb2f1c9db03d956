package snapshot

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"csvdash/internal/models"
	"csvdash/internal/services/dataloader"
	"csvdash/internal/services/planner"
	"csvdash/internal/services/schema"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testDataset(t *testing.T, content string) *models.Dataset {
	t.Helper()
	table, err := dataloader.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return schema.Normalize(table)
}

func TestRender(t *testing.T) {
	ds := testDataset(t, `type,amount,category,date
income,100,salary,2024-01-01
expense,40,rent,2024-01-02
expense,10,rent,2024-01-03
expense,12,food,2024-01-03`)

	for _, spec := range planner.Plan(ds, planner.Options{}) {
		if !Supports(spec.Kind) {
			continue
		}
		t.Run(spec.ID, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Render(&buf, spec); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
				t.Error("output is not a PNG")
			}
		})
	}
}

func TestRenderSinglePoint(t *testing.T) {
	ds := testDataset(t, "type,amount,date\nexpense,5,2024-01-01\n")

	spec, ok := planner.Chart(ds, "over-time", planner.Options{})
	if !ok {
		t.Fatal("over-time not available")
	}
	var buf bytes.Buffer
	if err := Render(&buf, spec); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestRenderUnsupported(t *testing.T) {
	spec := models.ChartSpec{ID: "cash-flow", Kind: models.ChartSankey}
	if err := Render(&bytes.Buffer{}, spec); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestRenderNoData(t *testing.T) {
	spec := models.ChartSpec{
		ID:     "totals-by-type",
		Kind:   models.ChartBar,
		Width:  400,
		Height: 300,
		Slice:  models.GroupTotals{},
	}
	if err := Render(&bytes.Buffer{}, spec); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}
