// Package result defines the uniform result envelope returned by every job.
package result

import (
	"math"
	"time"

	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

// Kind identifies the result variant.
type Kind string

// Result variants.
const (
	KindScrape Kind = "scrape"
	KindSearch Kind = "search"
	KindCrawl  Kind = "crawl"
)

// Scrape statuses.
const (
	StatusReady      = "ready"
	StatusError      = "error"
	StatusTimeout    = "timeout"
	StatusInProgress = "in_progress"
)

// TimeoutError is the error text of a result whose poll deadline elapsed.
const TimeoutError = "timeout"

// Result is implemented by ScrapeResult, SearchResult and CrawlResult.
type Result interface {
	Common() *Base
	Validate() error
	TimingBreakdown() map[string]any
	ToDict() (map[string]any, error)
	ToJSON(indent int) (string, error)
	ToMarkdown() string
	ToText() string
	SaveToFile(path, format string) error
}

// Base holds the fields shared by every variant.
type Base struct {
	Kind           Kind       `json:"kind" yaml:"kind"`
	RunID          string     `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Success        bool       `json:"success" yaml:"success"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
	Cost           float64    `json:"cost" yaml:"cost"`
	RequestSentAt  *time.Time `json:"request_sent_at,omitempty" yaml:"request_sent_at,omitempty"`
	DataReceivedAt *time.Time `json:"data_received_at,omitempty" yaml:"data_received_at,omitempty"`
	Data           any        `json:"data" yaml:"data"`
	Platform       string     `json:"platform,omitempty" yaml:"platform,omitempty"`
	Method         string     `json:"method,omitempty" yaml:"method,omitempty"`
	SourceTag      string     `json:"source_tag,omitempty" yaml:"source_tag,omitempty"`
}

// Common returns the shared fields.
func (b *Base) Common() *Base { return b }

// Elapsed returns the time between request and data receipt when both are known.
func (b *Base) Elapsed() (time.Duration, bool) {
	if b.RequestSentAt == nil || b.DataReceivedAt == nil {
		return 0, false
	}
	return b.DataReceivedAt.Sub(*b.RequestSentAt), true
}

// ElapsedMS is Elapsed in fractional milliseconds, or -1 when unknown.
func (b *Base) ElapsedMS() float64 {
	d, ok := b.Elapsed()
	if !ok {
		return -1
	}
	return millis(d)
}

func (b *Base) timing() map[string]any {
	out := map[string]any{
		"total_elapsed_ms": nil,
		"request_sent_at":  isoOrNil(b.RequestSentAt),
		"data_received_at": isoOrNil(b.DataReceivedAt),
	}
	if d, ok := b.Elapsed(); ok {
		out["total_elapsed_ms"] = millis(d)
	}
	return out
}

func (b *Base) validate(want Kind) error {
	if b.Kind != want {
		return sdkerr.Validationf("kind", "expected %q, got %q", want, b.Kind)
	}
	if b.Success && b.Error != "" {
		return sdkerr.Validationf("error", "successful result carries error %q", b.Error)
	}
	if !b.Success && b.Error == "" {
		return sdkerr.Validationf("error", "failed result has no error message")
	}
	if math.IsNaN(b.Cost) || b.Cost < 0 {
		return sdkerr.Validationf("cost", "must be non-negative, got %v", b.Cost)
	}
	if b.RequestSentAt != nil && b.DataReceivedAt != nil && b.DataReceivedAt.Before(*b.RequestSentAt) {
		return sdkerr.Validationf("data_received_at", "precedes request_sent_at")
	}
	return nil
}

// ScrapeResult is returned by URL and platform scrapes.
type ScrapeResult struct {
	Base                 `yaml:",inline"`
	URL                  string      `json:"url" yaml:"url"`
	Status               string      `json:"status" yaml:"status"`
	SnapshotID           string      `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	RootDomain           string      `json:"root_domain,omitempty" yaml:"root_domain,omitempty"`
	SnapshotIDReceivedAt *time.Time  `json:"snapshot_id_received_at,omitempty" yaml:"snapshot_id_received_at,omitempty"`
	SnapshotPolledAt     []time.Time `json:"snapshot_polled_at" yaml:"snapshot_polled_at"`
	RowCount             *int        `json:"row_count,omitempty" yaml:"row_count,omitempty"`
	HTMLCharSize         *int        `json:"html_char_size,omitempty" yaml:"html_char_size,omitempty"`
}

// Validate checks the result invariants.
func (r *ScrapeResult) Validate() error {
	if err := r.validate(KindScrape); err != nil {
		return err
	}
	switch r.Status {
	case StatusReady, StatusError, StatusTimeout, StatusInProgress:
	default:
		return sdkerr.Validationf("status", "unknown status %q", r.Status)
	}
	if err := nonNegative("row_count", r.RowCount); err != nil {
		return err
	}
	return nonNegative("html_char_size", r.HTMLCharSize)
}

// TimingBreakdown adds trigger and polling durations to the base timing.
func (r *ScrapeResult) TimingBreakdown() map[string]any {
	out := r.timing()
	if r.SnapshotIDReceivedAt != nil && r.RequestSentAt != nil {
		out["trigger_time_ms"] = millis(r.SnapshotIDReceivedAt.Sub(*r.RequestSentAt))
	}
	if r.SnapshotIDReceivedAt != nil && r.DataReceivedAt != nil {
		out["polling_time_ms"] = millis(r.DataReceivedAt.Sub(*r.SnapshotIDReceivedAt))
	}
	out["poll_count"] = len(r.SnapshotPolledAt)
	out["snapshot_id_received_at"] = isoOrNil(r.SnapshotIDReceivedAt)
	return out
}

// SearchResult is returned by search engine queries.
type SearchResult struct {
	Base           `yaml:",inline"`
	Query          map[string]any `json:"query" yaml:"query"`
	SearchEngine   string         `json:"search_engine,omitempty" yaml:"search_engine,omitempty"`
	Country        string         `json:"country,omitempty" yaml:"country,omitempty"`
	TotalFound     *int           `json:"total_found,omitempty" yaml:"total_found,omitempty"`
	Page           *int           `json:"page,omitempty" yaml:"page,omitempty"`
	ResultsPerPage *int           `json:"results_per_page,omitempty" yaml:"results_per_page,omitempty"`
}

// Validate checks the result invariants.
func (r *SearchResult) Validate() error {
	if err := r.validate(KindSearch); err != nil {
		return err
	}
	if err := nonNegative("total_found", r.TotalFound); err != nil {
		return err
	}
	if r.Page != nil && *r.Page < 1 {
		return sdkerr.Validationf("page", "must be >= 1, got %d", *r.Page)
	}
	if r.ResultsPerPage != nil && *r.ResultsPerPage < 1 {
		return sdkerr.Validationf("results_per_page", "must be >= 1, got %d", *r.ResultsPerPage)
	}
	return nil
}

// TimingBreakdown returns the base timing.
func (r *SearchResult) TimingBreakdown() map[string]any {
	return r.timing()
}

// CrawlResult is returned by site discovery crawls.
type CrawlResult struct {
	Base             `yaml:",inline"`
	Domain           string           `json:"domain,omitempty" yaml:"domain,omitempty"`
	StartURL         string           `json:"start_url,omitempty" yaml:"start_url,omitempty"`
	Pages            []map[string]any `json:"pages" yaml:"pages"`
	TotalPages       *int             `json:"total_pages,omitempty" yaml:"total_pages,omitempty"`
	Depth            *int             `json:"depth,omitempty" yaml:"depth,omitempty"`
	FilterPattern    string           `json:"filter_pattern,omitempty" yaml:"filter_pattern,omitempty"`
	ExcludePattern   string           `json:"exclude_pattern,omitempty" yaml:"exclude_pattern,omitempty"`
	CrawlStartedAt   *time.Time       `json:"crawl_started_at,omitempty" yaml:"crawl_started_at,omitempty"`
	CrawlCompletedAt *time.Time       `json:"crawl_completed_at,omitempty" yaml:"crawl_completed_at,omitempty"`
}

// Validate checks the result invariants.
func (r *CrawlResult) Validate() error {
	if err := r.validate(KindCrawl); err != nil {
		return err
	}
	if err := nonNegative("total_pages", r.TotalPages); err != nil {
		return err
	}
	if err := nonNegative("depth", r.Depth); err != nil {
		return err
	}
	if r.CrawlStartedAt != nil && r.CrawlCompletedAt != nil && r.CrawlCompletedAt.Before(*r.CrawlStartedAt) {
		return sdkerr.Validationf("crawl_completed_at", "precedes crawl_started_at")
	}
	return nil
}

// TimingBreakdown adds the crawl duration to the base timing.
func (r *CrawlResult) TimingBreakdown() map[string]any {
	out := r.timing()
	if r.CrawlStartedAt != nil && r.CrawlCompletedAt != nil {
		out["crawl_duration_ms"] = millis(r.CrawlCompletedAt.Sub(*r.CrawlStartedAt))
	}
	out["crawl_started_at"] = isoOrNil(r.CrawlStartedAt)
	out["crawl_completed_at"] = isoOrNil(r.CrawlCompletedAt)
	return out
}

// Int returns a pointer to n, for the optional count fields.
func Int(n int) *int { return &n }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }

func nonNegative(field string, v *int) error {
	if v != nil && *v < 0 {
		return sdkerr.Validationf(field, "must be non-negative, got %d", *v)
	}
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func isoOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
