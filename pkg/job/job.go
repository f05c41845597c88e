// Package job runs remote jobs through their trigger, poll and fetch lifecycle.
package job

import (
	"context"
	"time"

	"github.com/JakeFAU/brightdata-go/pkg/normalize"
	"github.com/JakeFAU/brightdata-go/pkg/result"
	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

// State is the remote-reported state of a job.
type State string

// Job states.
const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Status is one status check response.
type Status struct {
	State   State
	Message string
}

// Receipt is returned by a trigger call.
type Receipt struct {
	JobID      string
	BilledCost *float64
}

// Payload is the raw document returned by a fetch call.
type Payload struct {
	Raw        any
	BilledCost *float64
}

// Spec describes one unit of remote work. DatasetID and Inputs are sent to the
// remote API; the remaining fields describe the job on the resulting envelope.
type Spec struct {
	Kind          result.Kind
	DatasetID     string
	Inputs        []map[string]any
	IncludeErrors bool
	Platform      string
	Method        string
	CostPerRecord float64
	SourceTag     string

	// Scrape.
	URL string

	// Search.
	Query          map[string]any
	SearchEngine   string
	Country        string
	Page           int
	ResultsPerPage int

	// Crawl.
	StartURL       string
	Domain         string
	Depth          int
	FilterPattern  string
	ExcludePattern string
}

// Request is everything Run needs for one job.
type Request struct {
	// Zone selects the zone role the job runs through. Dataset jobs leave it empty.
	Zone         zone.Role
	Spec         Spec
	Shape        normalize.Shape
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Default poll bounds.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultPollTimeout  = 600 * time.Second
)

// API is the remote job surface.
type API interface {
	Trigger(ctx context.Context, zone string, spec Spec) (Receipt, error)
	Status(ctx context.Context, jobID string) (Status, error)
	Fetch(ctx context.Context, jobID string) (Payload, error)
}

// ZoneResolver maps a role onto a provisioned zone name.
type ZoneResolver interface {
	Resolve(ctx context.Context, role zone.Role) (string, error)
}

// Sink receives every finished result.
type Sink interface {
	Deliver(ctx context.Context, r result.Result) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
