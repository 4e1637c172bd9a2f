// internal/export/export_test.go
package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/harvex/leadharvest/pkg/types"
)

func sampleResults() []types.Result {
	return []types.Result{
		{
			ID:    "r1",
			JobID: "j1",
			URL:   "https://acme.example.com/team",
			Data: map[string]interface{}{
				"url":          "https://acme.example.com/team",
				"fetch_method": "static",
				"fields": map[string]interface{}{
					"title":    "Our Team",
					"headings": []string{"Leadership", "Engineering"},
				},
				"contacts": &types.ContactBundle{
					Emails: []string{"jane@acme.com"},
					Phones: []string{"(415) 555-0100"},
					SocialLinks: map[string][]string{
						"linkedin": {"linkedin.com/in/jane-doe"},
					},
				},
				"lead_score": 65,
			},
			ScrapedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:    "r2",
			JobID: "j1",
			URL:   "https://other.example.org",
			Data: map[string]interface{}{
				"url":          "https://other.example.org",
				"fetch_method": "dynamic",
				"fields": map[string]interface{}{
					"title": "Other Page",
				},
			},
			ScrapedAt: time.Date(2026, 8, 30, 12, 1, 0, 0, time.UTC),
		},
	}
}

func TestFlattenPromotesFieldsAndContacts(t *testing.T) {
	results := sampleResults()
	row := Flatten(&results[0])

	if row["url"] != "https://acme.example.com/team" {
		t.Errorf("Unexpected url: %v", row["url"])
	}
	if row["field_title"] != "Our Team" {
		t.Errorf("Fields should be prefixed: %v", row["field_title"])
	}
	if row["field_headings"] != "Leadership, Engineering" {
		t.Errorf("List fields should be joined: %v", row["field_headings"])
	}
	if row["emails"] != "jane@acme.com" {
		t.Errorf("Contacts should get dedicated columns: %v", row["emails"])
	}
	if row["linkedin"] != "linkedin.com/in/jane-doe" {
		t.Errorf("Social networks should get dedicated columns: %v", row["linkedin"])
	}
	if row["lead_score"] != 65 {
		t.Errorf("Unexpected lead score: %v", row["lead_score"])
	}
	if _, ok := row["names"]; ok {
		t.Error("Empty contact lists must stay absent")
	}
}

func TestColumnsUnionWithURLFirst(t *testing.T) {
	results := sampleResults()
	rows := []map[string]interface{}{Flatten(&results[0]), Flatten(&results[1])}

	columns := Columns(rows)
	if columns[0] != "url" {
		t.Fatalf("Expected url first, got %q", columns[0])
	}

	seen := map[string]bool{}
	for _, c := range columns {
		seen[c] = true
	}
	// Union: sparse columns from either row appear.
	for _, want := range []string{"emails", "field_title", "fetch_method", "lead_score"} {
		if !seen[want] {
			t.Errorf("Column %q missing from union: %v", want, columns)
		}
	}
	for i := 2; i < len(columns); i++ {
		if columns[i-1] > columns[i] {
			t.Fatalf("Columns after url should be sorted: %v", columns)
		}
	}
}

func TestWriteExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")

	err := WriteExcel(path, sampleResults(), ExcelOptions{AutoFilter: true, FreezeHeader: true})
	if err != nil {
		t.Fatalf("WriteExcel failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Workbook should be readable: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	// Header plus one row per result.
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "url" {
		t.Errorf("Expected url header first, got %q", rows[0][0])
	}
}

func TestWriteExcelRejectsWrongExtension(t *testing.T) {
	if err := WriteExcel("results.csv", nil, ExcelOptions{}); err == nil {
		t.Fatal("Expected error for non-xlsx path")
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	if err := WriteJSON(path, sampleResults()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) == 0 || data[0] != '[' {
		t.Errorf("Expected JSON array output, got %q", string(data[:min(20, len(data))]))
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
