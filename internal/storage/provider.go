// Package storage defines where finished runs are recorded. A Ledger keeps one
// row per run; an Archive keeps the full serialized result document.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/JakeFAU/brightdata-go/pkg/result"
)

// ErrRunNotFound is returned by Ledger.GetRun for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is the ledger row for one finished job.
type Run struct {
	RunID          string     `json:"run_id"`
	Kind           string     `json:"kind"`
	Platform       string     `json:"platform,omitempty"`
	Method         string     `json:"method,omitempty"`
	Target         string     `json:"target,omitempty"`
	SnapshotID     string     `json:"snapshot_id,omitempty"`
	Status         string     `json:"status,omitempty"`
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	Cost           float64    `json:"cost"`
	RowCount       *int       `json:"row_count,omitempty"`
	SourceTag      string     `json:"source_tag,omitempty"`
	RequestSentAt  *time.Time `json:"request_sent_at,omitempty"`
	DataReceivedAt *time.Time `json:"data_received_at,omitempty"`
	ArchiveURI     string     `json:"archive_uri,omitempty"`
	Digest         string     `json:"digest,omitempty"`
	RecordedAt     time.Time  `json:"recorded_at"`
}

// RunFromResult flattens a result into a ledger row.
func RunFromResult(res result.Result, recordedAt time.Time) Run {
	b := res.Common()
	run := Run{
		RunID:          b.RunID,
		Kind:           string(b.Kind),
		Platform:       b.Platform,
		Method:         b.Method,
		Success:        b.Success,
		Error:          b.Error,
		Cost:           b.Cost,
		SourceTag:      b.SourceTag,
		RequestSentAt:  b.RequestSentAt,
		DataReceivedAt: b.DataReceivedAt,
		RecordedAt:     recordedAt.UTC(),
	}
	switch r := res.(type) {
	case *result.ScrapeResult:
		run.Target = r.URL
		run.SnapshotID = r.SnapshotID
		run.Status = r.Status
		run.RowCount = r.RowCount
	case *result.SearchResult:
		if q, ok := r.Query["q"].(string); ok {
			run.Target = q
		}
		run.RowCount = r.TotalFound
	case *result.CrawlResult:
		run.Target = r.StartURL
		run.RowCount = r.TotalPages
	}
	return run
}

// Ledger records finished runs.
type Ledger interface {
	RecordRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Archive persists serialized result documents and returns their URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
