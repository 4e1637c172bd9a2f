// pkg/types/types.go
package types

import (
	"fmt"
	"strings"
	"time"
)

// TaskType determines which extraction passes run for a job.
type TaskType string

const (
	TaskGeneral TaskType = "general"
	TaskJob     TaskType = "job"
	TaskLead    TaskType = "lead"
)

// ParseTaskType converts a string into a TaskType, defaulting to general.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(strings.ToLower(strings.TrimSpace(s))) {
	case TaskGeneral, "":
		return TaskGeneral, nil
	case TaskJob:
		return TaskJob, nil
	case TaskLead:
		return TaskLead, nil
	default:
		return TaskGeneral, fmt.Errorf("unknown task type: %q", s)
	}
}

// NeedsContacts reports whether the task type requires contact augmentation.
func (t TaskType) NeedsContacts() bool {
	return t == TaskJob || t == TaskLead
}

// SelectorRule describes how a single field is pulled out of a document.
// Selectors use CSS syntax unless they start with "//" or ".//", which
// switches resolution to XPath.
type SelectorRule struct {
	Selector  string `yaml:"selector" json:"selector"`
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"` // "text" (default) or an HTML attribute name
	Multiple  bool   `yaml:"multiple,omitempty" json:"multiple,omitempty"`
}

// Adapter is a named set of selector rules plus fetch policy flags for a
// class of web pages.
type Adapter struct {
	Name              string                  `yaml:"name" json:"name"`
	DisplayName       string                  `yaml:"display_name" json:"display_name"`
	Description       string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Selectors         map[string]SelectorRule `yaml:"selectors" json:"selectors"`
	ExtractLinks      bool                    `yaml:"extract_links,omitempty" json:"extract_links,omitempty"`
	ExtractText       bool                    `yaml:"extract_text,omitempty" json:"extract_text,omitempty"`
	FallbackToDynamic bool                    `yaml:"fallback_to_dynamic,omitempty" json:"fallback_to_dynamic,omitempty"`
}

// Validate checks structural validity of an adapter definition.
func (a *Adapter) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("adapter name cannot be empty")
	}
	if len(a.Selectors) == 0 {
		return fmt.Errorf("adapter %q must define at least one selector", a.Name)
	}
	for field, rule := range a.Selectors {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("adapter %q has a selector with an empty field name", a.Name)
		}
		if strings.TrimSpace(rule.Selector) == "" {
			return fmt.Errorf("adapter %q field %q has an empty selector", a.Name, field)
		}
	}
	return nil
}

// AdapterSummary is the listing view of an adapter.
type AdapterSummary struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

// FetchMethod records how page content was retrieved.
type FetchMethod string

const (
	FetchStatic  FetchMethod = "static"
	FetchDynamic FetchMethod = "dynamic"
)

// FetchResult carries raw page content and how it was obtained. It is
// ephemeral: consumed immediately by extraction, never persisted.
type FetchResult struct {
	URL        string
	Content    string
	Method     FetchMethod
	StatusCode int
	Duration   time.Duration
}

// ExtractionResult is the structured output for one URL. Fields with no
// extracted value are absent from the map, never present with an empty
// value; downstream column inference depends on that.
type ExtractionResult struct {
	URL         string                 `json:"url"`
	Fields      map[string]interface{} `json:"fields"`
	Links       []string               `json:"links,omitempty"`
	TextContent string                 `json:"text_content,omitempty"`
}

// ContactBundle holds deduplicated contact information extracted from a
// page, plus a heuristic lead-quality score.
type ContactBundle struct {
	Emails      []string            `json:"emails"`
	Phones      []string            `json:"phones"`
	SocialLinks map[string][]string `json:"social_links"`
	Names       []string            `json:"names,omitempty"`
	Companies   []string            `json:"companies,omitempty"`
	LeadScore   int                 `json:"lead_score"`
}

// JobStatus is the lifecycle state of a scraping job. Terminal states are
// final; the orchestrator never mutates a job past them.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is one submitted batch-extraction request and its lifecycle state.
type Job struct {
	ID              string    `json:"id"`
	TaskType        TaskType  `json:"task_type"`
	AdapterName     string    `json:"adapter_name"`
	Query           string    `json:"query,omitempty"`
	URLs            []string  `json:"urls"`
	Status          JobStatus `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	TotalURLs       int       `json:"total_urls"`
	CompletedURLs   int       `json:"completed_urls"`
	FailedURLs      int       `json:"failed_urls"`
	ResultsCount    int       `json:"results_count"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
}

// Result is one URL's extracted data within a job. Immutable once created.
type Result struct {
	ID         string                 `json:"id"`
	JobID      string                 `json:"job_id"`
	URL        string                 `json:"url"`
	ResultType TaskType               `json:"result_type"`
	Data       map[string]interface{} `json:"data"`
	ScrapedAt  time.Time              `json:"scraped_at"`
}

// SearchResult is one hit from a keyword search provider.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// JobStats aggregates job and result counts for the dashboard view.
type JobStats struct {
	TotalJobs     int   `json:"total_jobs"`
	CompletedJobs int   `json:"completed_jobs"`
	FailedJobs    int   `json:"failed_jobs"`
	RunningJobs   int   `json:"running_jobs"`
	TotalResults  int   `json:"total_results"`
	RecentJobs    []Job `json:"recent_jobs"`
}
