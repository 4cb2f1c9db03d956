package main

import (
	"archive/zip"
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"csvdash/internal/config"
	"csvdash/internal/models"
	"csvdash/internal/services/storage"
	"csvdash/internal/testutil"
)

// setupTestServer initializes dependencies over a fresh data directory and
// returns a test server
func setupTestServer(t *testing.T) *testutil.TestServer {
	t.Helper()

	testutil.SetTestEnv(t)
	c := config.Load()

	// Initialize storage (unencrypted for tests)
	var err error
	store, err = storage.New(c.UploadsDirectory)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if err := SetupDependencies(c); err != nil {
		t.Fatalf("Failed to setup dependencies: %v", err)
	}

	ts := testutil.NewTestServer(t, SetupRouter())
	t.Cleanup(ts.Close)
	return ts
}

// uploadSample uploads testdata/transactions.csv and returns the new dataset id
func uploadSample(t *testing.T, ts *testutil.TestServer) string {
	t.Helper()

	resp := ts.Upload("/upload", "transactions.csv", testutil.ReadTestData(t, "transactions.csv"))
	testutil.AssertResponse(t, resp).RedirectsTo("/datasets/")

	id := strings.TrimPrefix(resp.Header.Get("Location"), "/datasets/")
	if id == "" {
		t.Fatal("upload redirect carries no dataset id")
	}
	return id
}

// TestHealthEndpoint tests the /api/health endpoint
func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/api/health")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeJSON().
		Contains(`"status":"ok"`)
}

func TestVersionEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/api/version")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeJSON().
		Contains(`"name":"csvdash"`)
}

// TestRootRedirect tests that / redirects to /upload
func TestRootRedirect(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("Expected status %d, got %d", http.StatusTemporaryRedirect, resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); location != "/upload" {
		t.Errorf("Expected redirect to /upload, got %s", location)
	}
}

func TestUploadPage(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.GET("/upload")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		HasElement("upload-form").
		ContainsAll("Upload a CSV file", "No datasets uploaded yet.")
}

func TestUploadAndDashboard(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	resp := ts.GET("/datasets/" + id)
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		HasElement("preview").
		HasElement("category-filter").
		ContainsAll(
			"transactions.csv",
			"Total Income",
			"Total Expenses",
			"Net",
			"Data Preview",
			"January salary from ACME",
			`data-chart="totals-by-type"`,
			`data-chart="amount-3d"`,
			"/datasets/"+id+"/export.csv",
		)

	list := ts.GET("/upload")
	testutil.AssertResponse(t, list).
		StatusOK().
		ContainsAll("transactions.csv", "/datasets/"+id)
}

func TestDashboardSelectedCategories(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	resp := ts.GETWithQuery("/datasets/"+id, url.Values{"category": {"rent"}})
	testutil.AssertResponse(t, resp).
		StatusOK().
		Contains(`<option value="rent" selected>`)
}

func TestKPIsPartial(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	resp := ts.GET("/datasets/" + id + "/kpis")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentTypeHTML().
		ContainsAll("Total Income", "$10,050.00", "Rows")
}

func TestUploadRejected(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		contains string
	}{
		{"ragged row", "bad.csv", "a,b\n1,2,3\n", http.StatusBadRequest, "parse error on line 2"},
		{"empty file", "empty.csv", "", http.StatusBadRequest, "empty"},
		{"not csv", "notes.txt", "a,b\n1,2\n", http.StatusBadRequest, "Only CSV files are allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.Upload("/upload", tt.filename, []byte(tt.content))
			testutil.AssertResponse(t, resp).
				Status(tt.status).
				Contains(tt.contains)
		})
	}

	// Nothing may be stored for a rejected upload
	resp := ts.GET("/datasets")
	testutil.AssertResponse(t, resp).
		StatusOK().
		Contains("No datasets uploaded yet.")
}

func TestUploadMissingFileField(t *testing.T) {
	ts := setupTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "value")
	mw.Close()

	resp := ts.POST("/upload", mw.FormDataContentType(), &body)
	testutil.AssertResponse(t, resp).Status(http.StatusBadRequest)
}

func TestUnknownDataset(t *testing.T) {
	ts := setupTestServer(t)

	paths := []string{
		"/datasets/not-a-uuid",
		"/datasets/00000000-0000-0000-0000-000000000000",
		"/datasets/00000000-0000-0000-0000-000000000000/charts",
		"/datasets/00000000-0000-0000-0000-000000000000/export.csv",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			testutil.AssertResponse(t, ts.GET(path)).Status(http.StatusNotFound)
		})
	}
}

func TestChartIndexAndData(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	var index []models.ChartIndexEntry
	testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/charts")).
		StatusOK().
		ContentTypeJSON().
		JSON(&index)

	if len(index) != 15 {
		t.Fatalf("Expected 15 charts, got %d", len(index))
	}
	if index[0].ID != "totals-by-type" || !index[0].Snapshot {
		t.Errorf("First chart = %+v, want totals-by-type with a snapshot", index[0])
	}

	for _, entry := range index {
		t.Run(entry.ID, func(t *testing.T) {
			var fig models.ChartResponse
			testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/charts/"+entry.ID)).
				StatusOK().
				ContentTypeJSON().
				JSON(&fig)
			if len(fig.Data) == 0 {
				t.Errorf("Chart %s has no traces", entry.ID)
			}
		})
	}
}

func TestFilteredChart(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	var fig models.ChartResponse
	resp := ts.GETWithQuery("/datasets/"+id+"/charts/filtered-expenses", url.Values{"category": {"rent", "groceries"}})
	testutil.AssertResponse(t, resp).StatusOK().JSON(&fig)

	x, _ := fig.Data[0]["x"].([]interface{})
	if len(x) != 2 || x[0] != "rent" || x[1] != "groceries" {
		t.Errorf("Filtered categories = %v, want [rent groceries]", x)
	}
}

func TestFilteredChartCategoryWithComma(t *testing.T) {
	ts := setupTestServer(t)

	csv := "type,amount,category\nexpense,12,\"Food, Dining\"\nexpense,30,rent\n"
	resp := ts.Upload("/upload", "dining.csv", []byte(csv))
	testutil.AssertResponse(t, resp).RedirectsTo("/datasets/")
	id := strings.TrimPrefix(resp.Header.Get("Location"), "/datasets/")

	var fig models.ChartResponse
	resp = ts.GETWithQuery("/datasets/"+id+"/charts/filtered-expenses", url.Values{"category": {"Food, Dining"}})
	testutil.AssertResponse(t, resp).StatusOK().JSON(&fig)

	x, _ := fig.Data[0]["x"].([]interface{})
	if len(x) != 1 || x[0] != "Food, Dining" {
		t.Errorf("Filtered categories = %v, want [Food, Dining]", x)
	}
}

func TestUnknownChart(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/charts/no-such-chart")).
		Status(http.StatusNotFound)
}

func TestChartSkippedWithoutColumns(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.Upload("/upload", "nodate.csv", []byte("type,amount,category\nincome,100,salary\nexpense,-40,rent\n"))
	testutil.AssertResponse(t, resp).RedirectsTo("/datasets/")
	id := strings.TrimPrefix(resp.Header.Get("Location"), "/datasets/")

	testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/charts/over-time")).
		Status(http.StatusNotFound)
	testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/charts/totals-by-type")).
		StatusOK()
	testutil.AssertResponse(t, ts.GET("/datasets/"+id)).
		StatusOK().
		Contains("Missing columns: date, description")
}

func TestSnapshots(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	for _, chartID := range []string{"totals-by-type", "expenses-by-category", "over-time", "type-share"} {
		t.Run(chartID, func(t *testing.T) {
			testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/snapshots/"+chartID)).
				StatusOK().
				ContentType("image/png").
				HasPrefix("\x89PNG")
		})
	}

	testutil.AssertResponse(t, ts.GET("/datasets/"+id+"/snapshots/cash-flow")).
		Status(http.StatusNotFound)
}

func TestExportCSV(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	resp := ts.GET("/datasets/" + id + "/export.csv")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentType("text/csv").
		Header("Content-Disposition", `attachment; filename="processed_data.csv"`).
		HasPrefix("date,type,amount,category,description").
		Contains("2024-01-01,income,")
}

func TestExportXLSX(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	resp := ts.GET("/datasets/" + id + "/export.xlsx")
	testutil.AssertResponse(t, resp).
		StatusOK().
		ContentType("spreadsheetml").
		Header("Content-Disposition", `filename="processed_data.xlsx"`).
		HasPrefix("PK")
}

func TestDeleteDataset(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	testutil.AssertResponse(t, ts.DELETE("/datasets/"+id)).
		StatusOK().
		Contains("No datasets uploaded yet.")

	testutil.AssertResponse(t, ts.GET("/datasets/"+id)).Status(http.StatusNotFound)
	testutil.AssertResponse(t, ts.DELETE("/datasets/"+id)).Status(http.StatusNotFound)
}

func TestBackupAndRestore(t *testing.T) {
	ts := setupTestServer(t)
	id := uploadSample(t, ts)

	resp := ts.GET("/backup")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	archive, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("Backup is not a zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "transactions_"+id+".csv" {
		t.Fatalf("Unexpected backup entries: %v", zr.File)
	}

	restore := ts.Upload("/backup/restore", "backup.zip", archive)
	testutil.AssertResponse(t, restore).
		StatusOK().
		Contains("Restored 1 datasets")

	var infos []models.DatasetInfo
	req, _ := http.NewRequest(http.MethodGet, ts.BaseURL+"/datasets", nil)
	req.Header.Set("Accept", "application/json")
	listResp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertResponse(t, listResp).StatusOK().JSON(&infos)
	if len(infos) != 2 {
		t.Errorf("Expected 2 datasets after restore, got %d", len(infos))
	}
}

func TestStaticFiles(t *testing.T) {
	ts := setupTestServer(t)

	testutil.AssertResponse(t, ts.GET("/static/app.js")).
		StatusOK().
		Contains("Plotly.react")
}
