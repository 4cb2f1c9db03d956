// Package main provides a CLI tool for validating csvdash server endpoints.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type endpoint struct {
	path        string
	method      string
	accept      string
	contentType string
	contains    []string
}

var endpoints = []endpoint{
	// Main pages
	{path: "/upload", method: "GET", contentType: "text/html", contains: []string{"Upload a CSV file"}},
	{path: "/datasets", method: "GET", contentType: "text/html", contains: nil},
	{path: "/datasets", method: "GET", accept: "application/json", contentType: "application/json", contains: nil},

	// API
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/version", method: "GET", contentType: "application/json", contains: []string{`"name":"csvdash"`}},
	{path: "/backup", method: "GET", contentType: "application/zip", contains: nil},
}

// datasetEndpoints are checked for one stored dataset
func datasetEndpoints(id string) []endpoint {
	base := "/datasets/" + id
	return []endpoint{
		{path: base, method: "GET", contentType: "text/html", contains: []string{"Data Preview"}},
		{path: base + "/kpis", method: "GET", contentType: "text/html", contains: []string{"Rows"}},
		{path: base + "/charts", method: "GET", contentType: "application/json", contains: nil},
		{path: base + "/export.csv", method: "GET", contentType: "text/csv", contains: nil},
		{path: base + "/export.xlsx", method: "GET", contentType: "spreadsheetml", contains: nil},
	}
}

// chartEntry is the part of the chart index the validator needs
type chartEntry struct {
	ID       string `json:"id"`
	Snapshot bool   `json:"snapshot"`
}

// chartEndpoints lists the figure and snapshot endpoints of every chart
// the server reports for the dataset
func chartEndpoints(client *http.Client, baseURL, id string) ([]endpoint, error) {
	var charts []chartEntry
	if err := getJSON(client, baseURL+"/datasets/"+id+"/charts", &charts); err != nil {
		return nil, err
	}

	var eps []endpoint
	for _, c := range charts {
		eps = append(eps, endpoint{
			path:        "/datasets/" + id + "/charts/" + c.ID,
			method:      "GET",
			contentType: "application/json",
			contains:    []string{`"data"`},
		})
		if c.Snapshot {
			eps = append(eps, endpoint{
				path:        "/datasets/" + id + "/snapshots/" + c.ID,
				method:      "GET",
				contentType: "image/png",
			})
		}
	}
	return eps, nil
}

// latestDataset returns the id of the newest stored dataset, or "" when
// there is none
func latestDataset(client *http.Client, baseURL string) (string, error) {
	var datasets []struct {
		ID string `json:"id"`
	}
	if err := getJSON(client, baseURL+"/datasets", &datasets); err != nil {
		return "", err
	}
	if len(datasets) == 0 {
		return "", nil
	}
	return datasets[0].ID, nil
}

func getJSON(client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
	body     string
}

func main() {
	url := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Int("timeout", 10, "Request timeout in seconds")
	datasetID := flag.String("dataset", "", "Dataset id to validate (default: newest)")
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeout) * time.Second,
	}

	id := *datasetID
	if id == "" {
		var err error
		id, err = latestDataset(client, *url)
		if err != nil {
			fmt.Printf("Could not list datasets: %v\n", err)
			os.Exit(1)
		}
	}
	if id == "" {
		fmt.Println("No datasets stored; upload one to validate the dashboard endpoints")
	} else {
		endpoints = append(endpoints, datasetEndpoints(id)...)
		charts, err := chartEndpoints(client, *url, id)
		if err != nil {
			fmt.Printf("Could not read the chart index: %v\n", err)
			os.Exit(1)
		}
		endpoints = append(endpoints, charts...)
	}

	fmt.Printf("Validating server at %s\n", *url)
	fmt.Printf("Testing %d endpoints...\n\n", len(endpoints))

	var passed, failed int
	var results []result

	for _, ep := range endpoints {
		r := validateEndpoint(client, *url, ep, *verbose)
		results = append(results, r)

		if r.err != nil {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Error: %v\n", r.err)
		} else if r.status != http.StatusOK {
			failed++
			fmt.Printf("FAIL %s %s\n", ep.method, ep.path)
			fmt.Printf("     Status: %d (expected 200)\n", r.status)
		} else {
			passed++
			if *verbose {
				fmt.Printf("PASS %s %s (%v)\n", ep.method, ep.path, r.duration)
			}
		}
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func validateEndpoint(client *http.Client, baseURL string, ep endpoint, verbose bool) result {
	start := time.Now()

	req, err := http.NewRequest(ep.method, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}
	if ep.accept != "" {
		req.Header.Set("Accept", ep.accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	duration := time.Since(start)

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: duration,
		body:     string(body),
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" {
		var js interface{}
		if err := json.Unmarshal(body, &js); err != nil {
			r.err = fmt.Errorf("invalid JSON: %w", err)
			return r
		}
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
