// internal/export/export.go

// Package export writes persisted job results to files for offline use.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/harvex/leadharvest/pkg/types"
)

// Flatten converts one result into a single-level row keyed by column
// name. Nested field maps are prefixed, contact bundles get dedicated
// columns and list values become comma-joined strings. Absent values stay
// absent so column inference only sees real data.
func Flatten(r *types.Result) map[string]interface{} {
	row := map[string]interface{}{
		"url":        r.URL,
		"scraped_at": r.ScrapedAt,
	}

	for key, value := range r.Data {
		switch key {
		case "url":
			// Already present.
		case "fields":
			if fields, ok := value.(map[string]interface{}); ok {
				for name, fv := range fields {
					row["field_"+name] = scalarize(fv)
				}
			}
		case "contacts":
			flattenContacts(row, value)
		case "links":
			row["links"] = scalarize(value)
		default:
			row[key] = scalarize(value)
		}
	}

	return row
}

func flattenContacts(row map[string]interface{}, value interface{}) {
	switch c := value.(type) {
	case *types.ContactBundle:
		putList(row, "emails", c.Emails)
		putList(row, "phones", c.Phones)
		putList(row, "names", c.Names)
		putList(row, "companies", c.Companies)
		for network, links := range c.SocialLinks {
			putList(row, network, links)
		}
	case map[string]interface{}:
		// Results read back from a store decode as generic maps.
		for k, v := range c {
			if k == "social_links" {
				if socials, ok := v.(map[string]interface{}); ok {
					for network, links := range socials {
						row[network] = scalarize(links)
					}
				}
				continue
			}
			if k == "lead_score" {
				continue // promoted to a top-level key by the runner
			}
			row[k] = scalarize(v)
		}
	}
}

func putList(row map[string]interface{}, key string, values []string) {
	if len(values) > 0 {
		row[key] = strings.Join(values, ", ")
	}
}

// scalarize collapses slices and maps into strings so every cell holds a
// single displayable value.
func scalarize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(t, ", ")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v
	}
}

// Columns returns the sorted union of row keys, with url first.
func Columns(rows []map[string]interface{}) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for key := range row {
			seen[key] = true
		}
	}
	delete(seen, "url")

	columns := make([]string, 0, len(seen)+1)
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return append([]string{"url"}, columns...)
}

// WriteJSON writes the raw results as a pretty-printed JSON array.
func WriteJSON(path string, results []types.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
